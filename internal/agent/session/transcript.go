package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const (
	transcriptFormat      = "cronturn-transcript-jsonl"
	transcriptSchema      = 1
	defaultKeepMessages   = 200
	defaultCompactMaxSize = 4 * 1024 * 1024

	// maxRecordContent bounds the content stored per message; maxRecordLine
	// bounds a JSONL line the reader accepts and leaves room for escaping.
	maxRecordContent = 1 << 20
	maxRecordLine    = 8 << 20
)

// Transcripts keeps the message history of each session id as a JSONL file.
// Files are append-only until they outgrow compactMaxSize, at which point
// they are rewritten with the newest keepMessages messages.
type Transcripts struct {
	root           string
	keepMessages   int
	compactMaxSize int64
	locks          sync.Map
}

type recordHeader struct {
	Type string `json:"_type"`
}

type metaRecord struct {
	Type      string    `json:"_type"`
	SessionID string    `json:"session_id"`
	UpdatedAt time.Time `json:"updated_at"`
	Format    string    `json:"format"`
	Schema    int       `json:"schema"`
}

type messageRecord struct {
	Type    string          `json:"_type"`
	Message *schema.Message `json:"msg"`
}

func NewTranscripts(root string) (*Transcripts, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve transcript path: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript path: %w", err)
	}
	return &Transcripts{
		root:           absRoot,
		keepMessages:   defaultKeepMessages,
		compactMaxSize: defaultCompactMaxSize,
	}, nil
}

// Load returns at most the newest keepMessages messages of sessionID.
func (t *Transcripts) Load(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	lock := t.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	msgs, err := t.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return t.tail(msgs), nil
}

func (t *Transcripts) Append(ctx context.Context, sessionID string, msgs ...*schema.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	lock := t.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	path := t.file(sessionID)
	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript for append: %w", err)
	}
	w := bufio.NewWriter(out)
	werr := writeRecords(w, sessionID, msgs)
	if werr == nil {
		werr = w.Flush()
	}
	if cerr := out.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("append transcript: %w", werr)
	}

	if info, err := os.Stat(path); err == nil && t.compactMaxSize > 0 && info.Size() >= t.compactMaxSize {
		return t.compact(ctx, sessionID)
	}
	return nil
}

func (t *Transcripts) Delete(ctx context.Context, sessionID string) error {
	_ = ctx
	lock := t.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(t.file(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

func (t *Transcripts) compact(ctx context.Context, sessionID string) error {
	msgs, err := t.read(ctx, sessionID)
	if err != nil {
		return err
	}
	path := t.file(sessionID)
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	w := bufio.NewWriter(out)
	werr := writeRecords(w, sessionID, t.tail(msgs))
	if werr == nil {
		werr = w.Flush()
	}
	if cerr := out.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp, path)
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("compact transcript: %w", werr)
	}
	return nil
}

// read skips oversized or malformed lines so one bad record never locks the
// session out of its history.
func (t *Transcripts) read(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	f, err := os.Open(t.file(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	msgs := make([]*schema.Message, 0, 16)
	for lineNo := 1; ; lineNo++ {
		raw, rerr := r.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return nil, fmt.Errorf("read transcript: %w", rerr)
		}
		if len(raw) > maxRecordLine {
			logs.CtxWarn(ctx, "[session] skip oversized transcript line %d of %s (%d bytes)", lineNo, sessionID, len(raw))
		} else if msg, err := parseRecord(strings.TrimSpace(raw)); err != nil {
			logs.CtxWarn(ctx, "[session] skip transcript line %d of %s: %v", lineNo, sessionID, err)
		} else if msg != nil {
			msgs = append(msgs, msg)
		}
		if rerr == io.EOF {
			break
		}
	}
	return msgs, nil
}

func parseRecord(line string) (*schema.Message, error) {
	if line == "" {
		return nil, nil
	}
	var header recordHeader
	if err := sonic.UnmarshalString(line, &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if header.Type != "msg" {
		return nil, nil
	}
	var rec messageRecord
	if err := sonic.UnmarshalString(line, &rec); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return rec.Message, nil
}

func (t *Transcripts) tail(msgs []*schema.Message) []*schema.Message {
	if t.keepMessages <= 0 || len(msgs) <= t.keepMessages {
		return msgs
	}
	msgs = msgs[len(msgs)-t.keepMessages:]
	// never open the window on an orphaned tool result
	for len(msgs) > 0 && msgs[0].Role == schema.Tool {
		msgs = msgs[1:]
	}
	return msgs
}

func writeRecords(w *bufio.Writer, sessionID string, msgs []*schema.Message) error {
	meta, err := sonic.MarshalString(metaRecord{
		Type:      "meta",
		SessionID: sessionID,
		UpdatedAt: time.Now(),
		Format:    transcriptFormat,
		Schema:    transcriptSchema,
	})
	if err != nil {
		return fmt.Errorf("marshal transcript meta: %w", err)
	}
	if _, err := w.WriteString(meta + "\n"); err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		line, err := sonic.MarshalString(messageRecord{
			Type: "msg",
			Message: &schema.Message{
				Role:       msg.Role,
				Content:    utils.Truncate(msg.Content, maxRecordContent),
				ToolCalls:  msg.ToolCalls,
				ToolCallID: msg.ToolCallID,
				ToolName:   msg.ToolName,
			},
		})
		if err != nil {
			return fmt.Errorf("marshal message record: %w", err)
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transcripts) lock(sessionID string) *sync.Mutex {
	actual, _ := t.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (t *Transcripts) file(sessionID string) string {
	return filepath.Join(t.root, filepath.Base(sessionID)+".jsonl")
}
