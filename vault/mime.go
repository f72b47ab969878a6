package vault

import (
	"mime"
	"path/filepath"
	"strings"
)

// octetStream is the type of files whose extension is not recognized.
const octetStream = "application/octet-stream"

// knownTypes pins the types of common extensions so the stored type does not
// depend on the host's MIME tables.
var knownTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
}

// fileType returns the MIME type recorded in a file's metadata.
func fileType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return octetStream
	}
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return octetStream
}
