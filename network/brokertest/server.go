// Package brokertest provides an in-memory broker that speaks the wire
// protocol of the storage API, for end-to-end tests of the client.
package brokertest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/wallet"
)

// APIPrefix is the path under which the API endpoints are served.
const APIPrefix = "/api/v1/"

// Server is an in-memory broker. It verifies every envelope signature and
// keeps folder documents and file parts in maps.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	metadata   map[string][]byte
	registered map[string]bool
	files      map[string]*storedFile
	calls      map[string]int
	drops      map[int]int
	dropAll    bool
	failDelete map[string]bool
	account    network.AccountStatus
}

type storedFile struct {
	meta     []byte
	size     int64
	endIndex int
	parts    map[int][]byte
}

// NewServer starts a broker listening on a loopback address.
func NewServer() *Server {
	s := &Server{
		metadata:   make(map[string][]byte),
		registered: make(map[string]bool),
		files:      make(map[string]*storedFile),
		calls:      make(map[string]int),
		drops:      make(map[int]int),
		failDelete: make(map[string]bool),
		account: network.AccountStatus{
			PaymentStatus: "paid",
			Account: network.AccountInfo{
				MonthsInSubscription: 12,
				StorageLimit:         128,
				MaxFolders:           2000,
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+APIPrefix+"{endpoint...}", s.handleAPI)
	mux.HandleFunc("GET /files/{id}/metadata", s.handleFileMetadata)
	mux.HandleFunc("GET /files/{id}/file", s.handleFileData)
	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL returns the API root to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + APIPrefix
}

// DropPart makes the broker acknowledge but discard the next times uploads
// of partIndex (1-based).
func (s *Server) DropPart(partIndex, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops[partIndex] = times
}

// DropAllParts makes the broker discard every uploaded part.
func (s *Server) DropAllParts(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropAll = drop
}

// FailDelete makes blob deletion of fileID fail with 500.
func (s *Server) FailDelete(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete[fileID] = true
}

// Calls returns how often endpoint was requested.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// TotalCalls returns the number of API requests served.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// HasMetadata reports whether a folder document is registered under key.
func (s *Server) HasMetadata(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered[key]
}

// MetadataKeys returns every registered folder document key.
func (s *Server) MetadataKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.registered))
	for k := range s.registered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasFile reports whether a file blob exists.
func (s *Server) HasFile(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[fileID]
	return ok
}

// FileCount returns the number of stored file blobs.
func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// StoredSize returns the number of stored bytes of fileID.
func (s *Server) StoredSize(fileID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return 0
	}
	return int64(len(f.assemble()))
}

func (f *storedFile) missing() []int {
	var missing []int
	for i := 1; i <= f.endIndex; i++ {
		if _, ok := f.parts[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

func (f *storedFile) assemble() []byte {
	var out []byte
	for i := 1; i <= f.endIndex; i++ {
		out = append(out, f.parts[i]...)
	}
	return out
}

type request struct {
	env         *wallet.Envelope
	attachments map[string][]byte
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	endpoint := r.PathValue("endpoint")

	s.mu.Lock()
	s.calls[endpoint]++
	s.mu.Unlock()

	req, err := parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := wallet.VerifyEnvelope(req.env); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var body struct {
		MetadataKey    string `json:"metadataKey"`
		Metadata       string `json:"metadata"`
		FileID         string `json:"fileId"`
		DownloadFileID string `json:"fileID"`
		FileHandle     string `json:"fileHandle"`
		FileSizeInByte int64  `json:"fileSizeInByte"`
		PartIndex      int    `json:"partIndex"`
		EndIndex       int    `json:"endIndex"`
	}
	if err := json.Unmarshal([]byte(req.env.RequestBody), &body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch endpoint {
	case network.EndpointAccountData:
		writeJSON(w, s.account)

	case network.EndpointMetadataGet:
		blob, ok := s.metadata[body.MetadataKey]
		if !ok {
			http.Error(w, "metadata not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"metadata": base64.StdEncoding.EncodeToString(blob)})

	case network.EndpointMetadataSet:
		if !s.registered[body.MetadataKey] {
			http.Error(w, "metadata not registered", http.StatusNotFound)
			return
		}
		blob, err := base64.StdEncoding.DecodeString(body.Metadata)
		if err != nil {
			http.Error(w, "metadata is not base64", http.StatusBadRequest)
			return
		}
		s.metadata[body.MetadataKey] = blob
		writeJSON(w, map[string]string{"status": "ok"})

	case network.EndpointMetadataCreate:
		if s.registered[body.MetadataKey] {
			http.Error(w, "metadata already exists", http.StatusForbidden)
			return
		}
		s.registered[body.MetadataKey] = true
		writeJSON(w, map[string]string{"status": "created"})

	case network.EndpointMetadataDelete:
		if !s.registered[body.MetadataKey] {
			http.Error(w, "metadata not found", http.StatusNotFound)
			return
		}
		delete(s.registered, body.MetadataKey)
		delete(s.metadata, body.MetadataKey)
		writeJSON(w, map[string]string{"status": "deleted"})

	case network.EndpointDelete:
		if s.failDelete[body.FileID] {
			http.Error(w, "delete failed", http.StatusInternalServerError)
			return
		}
		if _, ok := s.files[body.FileID]; !ok {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		delete(s.files, body.FileID)
		writeJSON(w, map[string]string{"status": "deleted"})

	case network.EndpointInitUpload:
		meta, ok := req.attachments[network.FieldMetadata]
		if !ok {
			http.Error(w, "missing metadata attachment", http.StatusBadRequest)
			return
		}
		s.files[body.FileHandle] = &storedFile{
			meta:     meta,
			size:     body.FileSizeInByte,
			endIndex: body.EndIndex,
			parts:    make(map[int][]byte),
		}
		writeJSON(w, map[string]string{"status": "initialized"})

	case network.EndpointUpload:
		f, ok := s.files[body.FileHandle]
		if !ok {
			http.Error(w, "upload not initialized", http.StatusNotFound)
			return
		}
		data, ok := req.attachments[network.FieldChunkData]
		if !ok {
			http.Error(w, "missing chunk data", http.StatusBadRequest)
			return
		}
		if body.PartIndex < 1 || body.PartIndex > f.endIndex {
			http.Error(w, "part index out of range", http.StatusBadRequest)
			return
		}
		if s.dropAll {
			writeJSON(w, map[string]string{"status": "ok"})
			return
		}
		if s.drops[body.PartIndex] > 0 {
			s.drops[body.PartIndex]--
			writeJSON(w, map[string]string{"status": "ok"})
			return
		}
		f.parts[body.PartIndex] = data
		writeJSON(w, map[string]string{"status": "ok"})

	case network.EndpointUploadStatus:
		f, ok := s.files[body.FileHandle]
		if !ok {
			http.Error(w, "upload not initialized", http.StatusNotFound)
			return
		}
		missing := f.missing()
		if len(missing) > 0 {
			writeJSON(w, network.UploadStatus{
				Status:         network.StatusChunksMissing,
				MissingIndexes: missing,
				EndIndex:       f.endIndex,
			})
			return
		}
		if got := int64(len(f.assemble())); got != f.size {
			http.Error(w, fmt.Sprintf("size mismatch: have %d, announced %d", got, f.size), http.StatusConflict)
			return
		}
		writeJSON(w, network.UploadStatus{Status: network.StatusUploaded, EndIndex: f.endIndex})

	case network.EndpointDownload:
		f, ok := s.files[body.DownloadFileID]
		if !ok || len(f.missing()) > 0 {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"fileDownloadUrl": s.URL + "/files/" + body.DownloadFileID})

	default:
		http.Error(w, "unknown endpoint", http.StatusNotFound)
	}
}

func (s *Server) handleFileMetadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.files[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(f.meta)
}

func (s *Server) handleFileData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.files[r.PathValue("id")]
	var data []byte
	if ok {
		data = f.assemble()
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	rng := r.Header.Get("Range")
	if rng == "" {
		_, _ = w.Write(data)
		return
	}
	var from, to int64
	if _, err := fmt.Sscanf(strings.TrimPrefix(rng, "bytes="), "%d-%d", &from, &to); err != nil ||
		from < 0 || to < from || from >= int64(len(data)) {
		http.Error(w, "invalid range", http.StatusRequestedRangeNotSatisfiable)
		return
	}
	to = min(to, int64(len(data))-1)
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", from, to, len(data)))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(data[from : to+1])
}

func parseRequest(r *http.Request) (*request, error) {
	req := &request{attachments: map[string][]byte{}}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		req.env = &wallet.Envelope{
			RequestBody: r.FormValue("requestBody"),
			Signature:   r.FormValue("signature"),
			PublicKey:   r.FormValue("publicKey"),
			Hash:        r.FormValue("hash"),
		}
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			data, err := readFormFile(headers[0])
			if err != nil {
				return nil, err
			}
			req.attachments[field] = data
		}
		return req, nil
	}

	var env wallet.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	req.env = &env
	return req, nil
}

func readFormFile(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("open form file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
