package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNew_WritesDailyJSONFile(t *testing.T) {
	root := t.TempDir()
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(root, false, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debugw("probe", "k", "v")
	_ = log.Sync()

	path := filepath.Join(root, "logs", time.Now().Format("2006-01-02")+".log")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"probe"`) || !strings.Contains(string(raw), `"level":"debug"`) {
		t.Fatalf("log content = %s", raw)
	}
}

func TestFromContext(t *testing.T) {
	l := zap.NewNop().Sugar()
	if got := FromContext(WithContext(context.Background(), l)); got != l {
		t.Fatal("FromContext did not return stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil without stored logger")
	}
}
