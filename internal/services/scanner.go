package services

import (
	"context"
	"fmt"
	"io"

	clamd "github.com/dutchcoders/go-clamd"
)

// ScanResult is the verdict for one scanned stream.
type ScanResult struct {
	Infected  bool
	Signature string
}

// Scanner streams content to a ClamAV daemon.
type Scanner struct {
	client *clamd.Clamd
}

// NewScanner takes an address such as "tcp://localhost:3310".
func NewScanner(address string) *Scanner {
	return &Scanner{client: clamd.NewClamd(address)}
}

func (s *Scanner) Ping() error {
	return s.client.Ping()
}

// Scan sends r to clamd with INSTREAM. Cancelling ctx aborts the scan.
func (s *Scanner) Scan(ctx context.Context, r io.Reader) (ScanResult, error) {
	abort := make(chan bool, 1)
	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to start scan: %w", err)
	}

	var verdict ScanResult
	for {
		select {
		case <-ctx.Done():
			abort <- true
			return ScanResult{}, ctx.Err()
		case res, ok := <-results:
			if !ok {
				return verdict, nil
			}
			switch res.Status {
			case clamd.RES_FOUND:
				verdict.Infected = true
				verdict.Signature = res.Description
			case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
				return ScanResult{}, fmt.Errorf("scan failed: %s", res.Description)
			}
		}
	}
}
