package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// SaveSnapshot writes frame as a JPEG under directory. Files are grouped into
// one subdirectory per date and hour, e.g. 2025-01-01_03PM. An empty
// directory disables saving.
func SaveSnapshot(frame gocv.Mat, directory string, frameIndex, detectionCount int) (string, error) {
	if directory == "" {
		return "", nil
	}
	return saveSnapshotAt(frame, directory, frameIndex, detectionCount, time.Now())
}

func saveSnapshotAt(frame gocv.Mat, directory string, frameIndex, detectionCount int, now time.Time) (string, error) {
	subdir := filepath.Join(directory, hourDirName(now))
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create snapshot directory %s", subdir)
	}

	filename := fmt.Sprintf("%s_frame%06d_potholes_%d.jpg", now.Format("20060102_150405.000"), frameIndex, detectionCount)
	path := filepath.Join(subdir, filename)
	if !gocv.IMWrite(path, frame) {
		return "", errors.Errorf("failed to write snapshot %s", path)
	}
	debugMsgVerbose("SNAPSHOT", fmt.Sprintf("Saved %s", path))
	return path, nil
}

func hourDirName(now time.Time) string {
	hour12 := now.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	ampm := "AM"
	if now.Hour() >= 12 {
		ampm = "PM"
	}
	return fmt.Sprintf("%s_%02d%s", now.Format("2006-01-02"), hour12, ampm)
}
