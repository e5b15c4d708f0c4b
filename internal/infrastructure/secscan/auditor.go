// Package secscan implements the pre-deployment security audit: a secret
// scan over the working tree plus a severity filter over a dependency
// scanner's JSON report.
package secscan

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shiplock/shiplock/internal/domain"
)

// Auditor implements [domain.SecurityAuditor].
type Auditor struct {
	// Paths are the files and directories to scan for secrets.
	Paths []string

	// AuditReportPath optionally points at a dependency scanner's JSON
	// report. Findings with critical severity fail the audit.
	AuditReportPath string
}

type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"aws-access-key-id", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"stripe-live-key", regexp.MustCompile(`\bsk_live_[0-9a-zA-Z]{16,}\b`)},
	{"github-token", regexp.MustCompile(`\bghp_[0-9A-Za-z]{36}\b`)},
	{"private-key-block", regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----`)},
}

var skipDirs = map[string]bool{
	".git":         true,
	".shiplock":    true,
	"node_modules": true,
	"vendor":       true,
}

// maxScanFileSize bounds the secret scan; anything larger is assumed to be
// a build artifact, not source.
const maxScanFileSize = 1 << 20

func (a *Auditor) Audit(ctx context.Context) (domain.AuditReport, error) {
	var report domain.AuditReport

	for _, root := range a.Paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return fs.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			matches, err := scanFile(path)
			if err != nil {
				return err
			}
			report.SecretMatches = append(report.SecretMatches, matches...)
			return nil
		})
		if err != nil {
			return domain.AuditReport{}, fmt.Errorf("scan %s: %w", root, err)
		}
	}

	if a.AuditReportPath != "" {
		findings, err := criticalFindings(a.AuditReportPath)
		if err != nil {
			return domain.AuditReport{}, err
		}
		report.CriticalFindings = findings
	}
	return report, nil
}

func scanFile(path string) ([]domain.SecretMatch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxScanFileSize || info.Mode()&os.ModeType != 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []domain.SecretMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxScanFileSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.ContainsRune(line, '\x00') {
			// Binary file.
			return nil, nil
		}
		for _, p := range secretPatterns {
			if p.re.MatchString(line) {
				matches = append(matches, domain.SecretMatch{
					File:    path,
					Line:    lineNo,
					Pattern: p.name,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return matches, nil
}

// vulnerability is one entry of the dependency scanner's report.
type vulnerability struct {
	Package  string `json:"package"`
	Version  string `json:"version"`
	Severity string `json:"severity"`
	ID       string `json:"id"`
}

func criticalFindings(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// No report means the dependency scanner did not run; that is a
		// configuration choice, not a failure.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit report: %w", err)
	}

	var doc struct {
		Vulnerabilities []vulnerability `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse audit report: %w", err)
	}

	var findings []string
	for _, v := range doc.Vulnerabilities {
		if !strings.EqualFold(v.Severity, "critical") {
			continue
		}
		finding := v.Package
		if v.Version != "" {
			finding += "@" + v.Version
		}
		if v.ID != "" {
			finding += " (" + v.ID + ")"
		}
		findings = append(findings, finding)
	}
	return findings, nil
}
