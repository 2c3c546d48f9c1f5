package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"
)

// maxPending bounds tool calls waiting for their result. Calls whose result
// never arrives (interrupted turns) would otherwise accumulate forever.
const maxPending = 512

// maxLine is the longest transcript line parsed; longer lines are skipped.
const maxLine = 2 * 1024 * 1024

// JSONLRecord represents a single line in the session file
type JSONLRecord struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	UUID      string   `json:"uuid"`
	SessionID string   `json:"sessionId"`
	GitBranch string   `json:"gitBranch"`
	CWD       string   `json:"cwd"`
	Message   *Message `json:"message,omitempty"`
}

// Message represents the message field in a JSONL record.
// Content is either a plain string or a list of items.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ContentItem represents an item in the content array
type ContentItem struct {
	Type      string          `json:"type"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	ID        string          `json:"id,omitempty"`          // tool_use ID
	ToolUseID string          `json:"tool_use_id,omitempty"` // References tool_use ID in tool_result
	Content   json.RawMessage `json:"content,omitempty"`     // tool_result content
	IsError   bool            `json:"is_error,omitempty"`
}

// Items decodes the content list. Plain-string content has no items.
func (m *Message) Items() []ContentItem {
	if len(m.Content) == 0 || m.Content[0] != '[' {
		return nil
	}
	var items []ContentItem
	if err := json.Unmarshal(m.Content, &items); err != nil {
		return nil
	}
	return items
}

// Metadata is what a transcript says about where it was recorded.
type Metadata struct {
	GitBranch string
	CWD       string
}

type pendingUse struct {
	name      string
	pattern   string
	signature string
	target    string
}

// Parser pairs tool calls with their results across incremental reads of one
// transcript. It is not safe for concurrent use.
type Parser struct {
	// SessionID overrides the id recorded in each line, so subagent
	// transcripts report under their parent session.
	SessionID string

	Meta    Metadata
	pending map[string]pendingUse
	order   []string
}

// NewParser creates a parser. sessionID may be empty.
func NewParser(sessionID string) *Parser {
	return &Parser{SessionID: sessionID, pending: make(map[string]pendingUse)}
}

// Line parses one JSONL line and returns the tool calls it completed.
func (p *Parser) Line(line []byte) []ToolOutcome {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return nil
	}
	if record.CWD != "" && p.Meta.CWD == "" {
		p.Meta.CWD = record.CWD
	}
	if record.GitBranch != "" && p.Meta.GitBranch == "" {
		p.Meta.GitBranch = record.GitBranch
	}
	if record.Message == nil {
		return nil
	}

	var out []ToolOutcome
	for _, item := range record.Message.Items() {
		switch item.Type {
		case "tool_use":
			p.remember(item)
		case "tool_result":
			if o, ok := p.complete(&record, item); ok {
				out = append(out, o)
			}
		}
	}
	return out
}

func (p *Parser) remember(item ContentItem) {
	if item.ID == "" || item.Name == "" {
		return
	}
	if _, dup := p.pending[item.ID]; dup {
		return
	}
	if len(p.order) >= maxPending {
		delete(p.pending, p.order[0])
		p.order = p.order[1:]
	}
	p.pending[item.ID] = pendingUse{
		name:      item.Name,
		pattern:   ExtractPattern(item.Name, item.Input),
		signature: Signature(item.Name, item.Input),
		target:    Target(item.Name, item.Input),
	}
	p.order = append(p.order, item.ID)
}

func (p *Parser) complete(record *JSONLRecord, item ContentItem) (ToolOutcome, bool) {
	use, ok := p.pending[item.ToolUseID]
	if !ok {
		return ToolOutcome{}, false
	}
	delete(p.pending, item.ToolUseID)
	for i, id := range p.order {
		if id == item.ToolUseID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}

	ts, err := time.Parse(time.RFC3339, record.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = record.SessionID
	}
	return ToolOutcome{
		SessionID: sessionID,
		ToolUseID: item.ToolUseID,
		ToolName:  use.name,
		Pattern:   use.pattern,
		Signature: use.signature,
		Target:    use.target,
		Success:   !item.IsError && !isErrorResult(extractResultText(item.Content)),
		Timestamp: ts,
	}, true
}

// Pending reports how many tool calls are waiting for a result.
func (p *Parser) Pending() int {
	return len(p.pending)
}

// ReadFrom parses complete lines of path starting at offset and returns the
// outcomes found and the offset after the last complete line. A trailing line
// without a newline is left for the next read.
func (p *Parser) ReadFrom(path string, offset int64) ([]ToolOutcome, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.Size() < offset {
		// Truncated or replaced; start over.
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	var out []ToolOutcome
	r := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return out, offset, nil
		}
		if err != nil {
			return out, offset, err
		}
		offset += int64(len(line))
		if len(line) > maxLine {
			continue
		}
		out = append(out, p.Line(bytes.TrimSpace(line))...)
	}
}

// ReadMetadata scans a transcript for its working directory and branch.
func ReadMetadata(path string) (Metadata, error) {
	p := NewParser("")
	if _, _, err := p.ReadFrom(path, 0); err != nil {
		return Metadata{}, err
	}
	return p.Meta, nil
}

// extractResultText extracts readable text from tool_result content
func extractResultText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var simple string
	if err := json.Unmarshal(content, &simple); err == nil {
		return simple
	}

	var items []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &items); err == nil {
		var b strings.Builder
		for _, item := range items {
			if item.Type == "text" && item.Text != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(item.Text)
			}
		}
		return b.String()
	}
	return string(content)
}

// isErrorResult checks if the result text reads as an error
func isErrorResult(result string) bool {
	if len(result) < 5 {
		return false
	}
	prefix := strings.ToLower(strings.TrimSpace(result))
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	return strings.HasPrefix(prefix, "error") ||
		strings.HasPrefix(prefix, "failed") ||
		strings.HasPrefix(prefix, "<tool_use_error>")
}
