package index

import (
	"sync"

	"github.com/radium-run/radium/internal/rag/parser/markdown"
	"github.com/radium-run/radium/internal/rag/parser/text"
)

var registerParsersOnce sync.Once

func ensureDefaultParsers() {
	registerParsersOnce.Do(func() {
		markdown.Register()
		text.Register()
	})
}
