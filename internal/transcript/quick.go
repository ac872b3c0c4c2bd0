package transcript

import (
	"io"
	"os"
	"regexp"
	"time"
)

// quickScanBytes bounds the cheap regex extracts below; they exist so file
// selection heuristics stay affordable on very large transcripts.
const quickScanBytes = 64 << 10

var (
	sessionIDPattern = regexp.MustCompile(`"sessionId"\s*:\s*"([^"]+)"`)
	timestampPattern = regexp.MustCompile(`"timestamp"\s*:\s*"([^"]+)"`)
)

// QuickSessionID recovers the session id from the head of a transcript
// without a full parse.
func QuickSessionID(path string) string {
	head, err := readHead(path, quickScanBytes)
	if err != nil {
		return ""
	}
	match := sessionIDPattern.FindSubmatch(head)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// QuickTimestamp recovers the first event timestamp from the head of a
// transcript without a full parse.
func QuickTimestamp(path string) time.Time {
	head, err := readHead(path, quickScanBytes)
	if err != nil {
		return time.Time{}
	}
	match := timestampPattern.FindSubmatch(head)
	if match == nil {
		return time.Time{}
	}
	return parseTime(string(match[1]))
}

func readHead(path string, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head, err := io.ReadAll(io.LimitReader(f, n))
	if err != nil {
		return nil, err
	}
	return head, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
