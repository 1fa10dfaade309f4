package core

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadName returns a collision-resistant name for an uploaded file:
// <unix-millis>-<random><ext>. Only the extension of the client's file name
// survives.
func UploadName(filename string, at time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + random + strings.ToLower(filepath.Ext(filename))
}
