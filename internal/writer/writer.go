// Package writer emits the tab-separated table files the sampler loop
// produces for each metric: a crash-safe full rewrite, and a cheap
// single-row append used on every tick that does not need one.
package writer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	sperrors "github.com/oxfordcbrg/spsd/pkg/errors"
)

// MetricTable is the minimal view writer needs of a timeseries.Metric,
// kept as an interface so the package has no import-cycle dependency on
// internal/timeseries and stays trivially testable with fakes.
type MetricTable interface {
	Keys() []string
	Series(key string) []float64
	Requested() string
	OutputPath() string
}

// RewriteTab atomically rewrites the table file for m: the existing file
// (if any) is renamed to "<path>.bak", a fresh file is written with a
// header and every data row up to tick, then the backup is removed. A
// daemon killed between rename and the close of the new file leaves the
// previous consistent snapshot at "<path>.bak".
func RewriteTab(m MetricTable, tick, rate int) error {
	path := m.OutputPath()
	backup := path + ".bak"

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("%w: %v", sperrors.ErrBackupRenameFailed, err)
		}
	} else if !os.IsNotExist(err) {
		return sperrors.WrapRuntimeError("rewrite-tab-stat", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", sperrors.ErrTableOpenFailed, err)
	}

	w := bufio.NewWriter(f)
	keys := m.Keys()
	writeHeader(w, keys)
	for t := 1; t <= tick; t++ {
		writeRow(w, t, rate, m.Requested(), keys, m, t-1)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return sperrors.WrapRuntimeError("rewrite-tab-flush", err)
	}
	if err := f.Close(); err != nil {
		return sperrors.WrapRuntimeError("rewrite-tab-close", err)
	}

	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		return sperrors.WrapRuntimeError("rewrite-tab-remove-backup", err)
	}
	return nil
}

// AppendTab appends the single row for tick to the existing table file,
// opening it for append (creating it if absent). No backup is taken: at
// most one trailing row can be lost on a crash.
func AppendTab(m MetricTable, tick, rate int) error {
	f, err := os.OpenFile(m.OutputPath(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", sperrors.ErrTableOpenFailed, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	writeRow(w, tick, rate, m.Requested(), m.Keys(), m, tick-1)
	return w.Flush()
}

func writeHeader(w *bufio.Writer, keys []string) {
	w.WriteString("#TIME\tREQUESTED")
	for _, k := range keys {
		w.WriteString("\t")
		w.WriteString(k)
	}
	w.WriteString("\n")
}

func writeRow(w *bufio.Writer, tick, rate int, requested string, keys []string, m MetricTable, idx int) {
	w.WriteString(strconv.Itoa(tick * rate))
	w.WriteString("\t")
	w.WriteString(requested)
	for _, k := range keys {
		series := m.Series(k)
		var v float64
		if idx < len(series) {
			v = series[idx]
		}
		w.WriteString("\t")
		w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	w.WriteString("\n")
}
