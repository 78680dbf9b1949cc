// Package patternpipe implements the line-oriented stream copier described
// in the service runtime's design: it tags each line of an input stream
// with a prefix, forwards it to a shared output sink, and fires a callback
// for every configured regex that matches the line.
package patternpipe

import (
	"bufio"
	"io"
	"regexp"
	"sync"
)

const (
	maxLineBuffer    = 64 * 1024
	maxLineBufferCap = 1024 * 1024
)

// Matcher pairs a regex with the callback to invoke, synchronously and at
// most once per matching line, when `regex.find(line)` succeeds anywhere in
// the line (the match is not anchored).
type Matcher struct {
	Pattern *regexp.Regexp
	OnMatch func(line string)
}

// Pipe copies Source to Sink line by line, prefixing every line and running
// it through Matchers. Sink is never closed by the pipe; callers own its
// lifecycle. SinkMu, if non-nil, is held only for the duration of the
// prefixed write, so concurrent pipes sharing one sink interleave at line
// granularity rather than mid-line.
type Pipe struct {
	Prefix   string
	Source   io.Reader
	Sink     io.Writer
	SinkMu   *sync.Mutex
	Matchers []Matcher
	OnError  func(error)
}

// Run blocks until Source reaches EOF or a read error occurs. It is safe to
// run concurrently with another Pipe sharing the same Sink/SinkMu.
func (p *Pipe) Run() {
	scanner := bufio.NewScanner(p.Source)
	scanner.Buffer(make([]byte, maxLineBuffer), maxLineBufferCap)

	for scanner.Scan() {
		line := scanner.Text()
		p.write(line)
		for _, m := range p.Matchers {
			if m.Pattern.FindStringIndex(line) != nil {
				m.OnMatch(line)
			}
		}
	}

	if err := scanner.Err(); err != nil && p.OnError != nil {
		p.OnError(err)
	}
}

func (p *Pipe) write(line string) {
	if p.Sink == nil {
		return
	}
	if p.SinkMu != nil {
		p.SinkMu.Lock()
		defer p.SinkMu.Unlock()
	}
	_, _ = io.WriteString(p.Sink, p.Prefix+line+"\n")
}
