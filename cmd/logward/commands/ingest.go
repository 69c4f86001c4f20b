package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/logward/logward/internal/utils/logger"
	"github.com/logward/logward/pkg/client"
)

var (
	ingestServer  string
	ingestToken   string
	ingestTimeout time.Duration
	ingestChunk   int
)

// IngestCmd reads records from a file or stdin and posts them to a running
// logward instance. Input is a JSON array, NDJSON, or plain text lines
// (each line becomes {"message": line}).
// IngestCmd 从文件或标准输入读取记录并提交到运行中的 logward 实例。输入为
// JSON 数组、NDJSON 或纯文本行（每行转为 {"message": line}）。
var IngestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Send log records from a file or stdin to a logward server",
	// Short: 将文件或标准输入中的日志记录发送到 logward 服务器
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0]) // #nosec G304
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			in = f
		}

		records, err := readRecords(in)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no records found in input")
		}

		c := client.New(ingestServer, ingestToken, ingestTimeout)
		log := logger.Get(cmd.Context())

		accepted, dropped := 0, 0
		for start := 0; start < len(records); start += ingestChunk {
			end := start + ingestChunk
			if end > len(records) {
				end = len(records)
			}
			result, err := c.IngestBatch(cmd.Context(), records[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d failed (accepted so far: %d): %w", start, end, accepted, err)
			}
			accepted += result.Accepted
			dropped += result.Dropped
		}

		log.Infof("✅ Ingested %d records (accepted=%d dropped=%d)", len(records), accepted, dropped)
		return nil
	},
}

// readRecords decodes a JSON array, NDJSON stream or plain text lines.
// readRecords 解码 JSON 数组、NDJSON 流或纯文本行。
func readRecords(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReaderSize(r, 64<<10)

	head, err := br.Peek(1)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(head) == 1 && head[0] == '[' {
		var records []map[string]any
		if err := json.NewDecoder(br).Decode(&records); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return records, nil
	}

	var records []map[string]any
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "{") {
			var record map[string]any
			if err := json.Unmarshal([]byte(line), &record); err == nil {
				records = append(records, record)
				continue
			}
		}
		records = append(records, map[string]any{"message": line})
	}
	return records, scanner.Err()
}

func init() {
	IngestCmd.Flags().StringVar(&ingestServer, "server", "http://127.0.0.1:8000", "Base URL of the logward server")
	IngestCmd.Flags().StringVar(&ingestToken, "token", "", "Bearer token for the API")
	IngestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Second, "Request timeout")
	IngestCmd.Flags().IntVar(&ingestChunk, "batch", 100, "Records per batch request")
}
