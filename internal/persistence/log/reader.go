package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ReadAudit decodes every audit-*.jsonl.zst file under <dir>/audit in
// hour order and returns the entries keep accepts. A nil keep accepts all.
func ReadAudit(dir string, keep func(AuditEntry) bool) ([]AuditEntry, error) {
	auditDir := filepath.Join(dir, "audit")
	ents, err := os.ReadDir(auditDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []AuditEntry
	for _, name := range names {
		out, err = readAuditFile(filepath.Join(auditDir, name), keep, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readAuditFile(path string, keep func(AuditEntry) bool, out []AuditEntry) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return out, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}
