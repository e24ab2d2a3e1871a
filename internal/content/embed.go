package content

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed data
var embedded embed.FS

// Default loads the lesson content bundled with the binary.
func Default(opts ...Option) (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("open embedded content: %w", err)
	}
	return Load(sub, opts...)
}
