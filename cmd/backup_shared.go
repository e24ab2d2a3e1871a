package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func listFromConfig(key string) []string {
	return normalizeList(viper.GetStringSlice(key))
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, value := range values {
		name := strings.TrimSpace(value)
		if name == "" {
			continue
		}
		result = append(result, strings.ToLower(name))
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

type cliProgress struct {
	out         io.Writer
	totals      map[string]int
	counts      map[string]int
	lastPrinted map[string]int
	steps       map[string]int
}

func newCLIProgress(out io.Writer) *cliProgress {
	return &cliProgress{
		out:         out,
		totals:      make(map[string]int),
		counts:      make(map[string]int),
		lastPrinted: make(map[string]int),
		steps:       make(map[string]int),
	}
}

func (p *cliProgress) StartKind(kind string, total int) {
	if total < 0 {
		total = 0
	}
	p.totals[kind] = total
	p.counts[kind] = 0
	p.lastPrinted[kind] = 0
	p.steps[kind] = progressStep(total)
	fmt.Fprintf(p.out, "exporting %s (%d records)\n", kind, total)
}

func (p *cliProgress) Increment(kind string, delta int) {
	if delta <= 0 {
		return
	}
	current := p.counts[kind] + delta
	p.counts[kind] = current
	total := p.totals[kind]
	step := p.steps[kind]
	if step <= 0 {
		step = 1
	}
	last := p.lastPrinted[kind]
	if current == total || last == 0 || current-last >= step {
		p.printProgress(kind, current, total)
		p.lastPrinted[kind] = current
	}
}

func (p *cliProgress) FinishKind(kind string) {
	current := p.counts[kind]
	total := p.totals[kind]
	if current != p.lastPrinted[kind] {
		p.printProgress(kind, current, total)
	}
	fmt.Fprintf(p.out, "exported %s: %d/%d records\n", kind, current, total)
	delete(p.counts, kind)
	delete(p.totals, kind)
	delete(p.lastPrinted, kind)
	delete(p.steps, kind)
}

func (p *cliProgress) printProgress(kind string, current, total int) {
	fmt.Fprintf(p.out, "  %s: %d/%d\n", kind, current, total)
}

func progressStep(total int) int {
	if total <= 0 {
		return 1000
	}
	step := total / 20
	if step < 1 {
		step = 1
	}
	if step > 1000 {
		step = 1000
	}
	return step
}
