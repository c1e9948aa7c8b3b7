package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/sdejongh/syncnorris/pkg/afs"
)

const verifyChunkSize = 256 * 1024

// verifyCopy performs the byte-for-byte comparison spec.md §4.6.3
// describes for verifyCopiedFiles: it runs outside the engine's global
// mutex (its caller already released it) and its only progress
// concern is cooperative cancellation, not throughput pacing.
func verifyCopy(ctx context.Context, backend afs.Backend, srcPath, tgtPath string) error {
	src, err := backend.Open(ctx, srcPath)
	if err != nil {
		return fmt.Errorf("verify open source %s: %w", srcPath, err)
	}
	defer src.Close()

	tgt, err := backend.Open(ctx, tgtPath)
	if err != nil {
		return fmt.Errorf("verify open target %s: %w", tgtPath, err)
	}
	defer tgt.Close()

	br1 := bufio.NewReaderSize(src, verifyChunkSize)
	br2 := bufio.NewReaderSize(tgt, verifyChunkSize)
	buf1 := make([]byte, verifyChunkSize)
	buf2 := make([]byte, verifyChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n1, err1 := io.ReadFull(br1, buf1)
		n2, err2 := io.ReadFull(br2, buf2)
		if n1 != n2 {
			return fmt.Errorf("verify %s vs %s: size mismatch", srcPath, tgtPath)
		}
		if n1 > 0 && string(buf1[:n1]) != string(buf2[:n2]) {
			return fmt.Errorf("verify %s vs %s: content mismatch", srcPath, tgtPath)
		}
		doneErr1 := err1 == io.EOF || err1 == io.ErrUnexpectedEOF
		doneErr2 := err2 == io.EOF || err2 == io.ErrUnexpectedEOF
		if doneErr1 && doneErr2 {
			return nil
		}
		if err1 != nil && !doneErr1 {
			return fmt.Errorf("verify read source %s: %w", srcPath, err1)
		}
		if err2 != nil && !doneErr2 {
			return fmt.Errorf("verify read target %s: %w", tgtPath, err2)
		}
		if doneErr1 != doneErr2 {
			return fmt.Errorf("verify %s vs %s: size mismatch", srcPath, tgtPath)
		}
	}
}
