package services

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"resource-linker/internal/models"
)

// Printer 将每个 JSON 响应以单行形式写到输出，并发安全。
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes one JSON document followed by a newline.
func (p *Printer) Print(body json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintln(p.w, string(body)); err != nil {
		return fmt.Errorf("输出响应失败: %w", err)
	}
	return nil
}

// PrintRecord prints the record that would be sent, used by dry runs.
func (p *Printer) PrintRecord(rec models.UploadRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("编码资源 %s 失败: %w", rec.Filename, err)
	}
	return p.Print(body)
}
