package main

import (
	"bytes"
	"os"
	"unicode/utf8"

	"github.com/h2non/filetype"
)

// sniffLen is how much of the content filetype needs to recognize magic numbers.
const sniffLen = 8192

// inclusionFilter decides per entry whether its content goes into the snapshot.
type inclusionFilter struct {
	thresholdBytes int64
	includeAll     bool
	langs          *LanguageData
}

func newInclusionFilter(cfg Config, langs *LanguageData) *inclusionFilter {
	return &inclusionFilter{
		thresholdBytes: cfg.ThresholdBytes(),
		includeAll:     cfg.IncludeAll,
		langs:          langs,
	}
}

// Apply classifies e and, when it is included, leaves its content in e.Content.
// The rules run in order: size threshold (unless include-all), extension
// heuristic, then content decoding. include-all never overrides binary detection.
func (f *inclusionFilter) Apply(e *FileEntry) {
	if e.Reason != ReasonNone {
		// Already decided by the walker.
		return
	}

	if lang, ok := f.langs.GetLanguageForFile(e.Path); ok {
		e.Language = lang
	}

	if !f.includeAll && e.Size > f.thresholdBytes {
		e.skip(ReasonTooLarge, nil)
		return
	}

	if f.langs.IsBinaryLanguage(e.Language) {
		e.Class = ClassBinary
		e.skip(ReasonBinary, nil)
		return
	}

	content, err := os.ReadFile(e.AbsPath)
	if err != nil {
		e.skip(ReasonUnreadable, err)
		return
	}

	class, kind := classifyContent(content)
	e.Class = class
	e.Kind = kind
	if class == ClassBinary {
		e.skip(ReasonBinary, nil)
		return
	}

	if e.Language == "" {
		if lang, ok := f.langs.GetLanguageForContent(content); ok {
			e.Language = lang
		}
	}
	e.Size = int64(len(content))
	e.Content = content
	e.Included = true
}

// classifyContent reports whether content decodes as text. Content with a NUL
// byte or invalid UTF-8 is binary; kind names the detected format when the
// magic number is known.
func classifyContent(content []byte) (Classification, string) {
	if len(content) == 0 {
		return ClassText, ""
	}
	if bytes.IndexByte(content, 0) < 0 && utf8.Valid(content) {
		return ClassText, ""
	}
	return ClassBinary, detectKind(content)
}

// detectKind returns the MIME type filetype recognizes, or
// application/octet-stream.
func detectKind(content []byte) string {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
