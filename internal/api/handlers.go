package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"easychat/internal/auth"
	"easychat/internal/content"
	"easychat/internal/filestore"
	"easychat/internal/models"
	"easychat/internal/storage"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

const maxUploadSize = 20 << 20 // 20 MiB

type API struct {
	auth  *auth.AuthService
	store *storage.BboltStorage
	files filestore.FileStore
}

func New(auth *auth.AuthService, store *storage.BboltStorage, files filestore.FileStore) *API {
	return &API{auth: auth, store: store, files: files}
}

// bearerToken extracts the token from the Authorization header
// ("Bearer <token>"), falling back to the "token" header.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("token")
}

// RequireAuth wraps a handler and rejects requests without a valid
// bearer token. The verified claims are handed to the wrapped handler.
func (a *API) RequireAuth(next func(w http.ResponseWriter, r *http.Request, claims auth.Claims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.auth.VerifyToken(bearerToken(r))
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, claims)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := content.ValidateUsername(req.Username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	user, err := a.auth.AddUser(req.Username, req.Password, content.Sanitize(req.DisplayName))
	if errors.Is(err, auth.ErrUserExists) {
		http.Error(w, "username already taken", http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("failed to register user: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp := a.auth.Login(req)
	if !resp.Success {
		writeJSON(w, http.StatusUnauthorized, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) MeHandler(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	user, ok := a.auth.GetUser(claims.Username)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ConversationHandler returns the single-chat history between two
// users, ascending by message id. The caller must be one of the two.
func (a *API) ConversationHandler(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	userID1, err1 := strconv.ParseInt(r.URL.Query().Get("userId1"), 10, 64)
	userID2, err2 := strconv.ParseInt(r.URL.Query().Get("userId2"), 10, 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "userId1 and userId2 are required", http.StatusBadRequest)
		return
	}
	if claims.UserID != userID1 && claims.UserID != userID2 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	messages, err := a.store.ListConversation(userID1, userID2)
	if err != nil {
		log.Printf("failed to list conversation: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (a *API) GroupConversationHandler(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	groupID, err := strconv.ParseInt(r.URL.Query().Get("groupId"), 10, 64)
	if err != nil {
		http.Error(w, "groupId is required", http.StatusBadRequest)
		return
	}

	messages, err := a.store.ListGroupConversation(groupID)
	if err != nil {
		log.Printf("failed to list group conversation: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (a *API) UploadFileHandler(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	mimeType := "application/octet-stream"
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		mimeType = kind.MIME.Value
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if err := a.files.Save(bytes.NewReader(data), hash); err != nil {
		log.Printf("failed to store file: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	meta := storage.FileMetadata{
		ID:        uuid.NewString(),
		Hash:      hash,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		CreatedAt: time.Now().Unix(),
		UserID:    claims.UserID,
	}
	if err := a.store.UpsertFileMetadata(meta); err != nil {
		log.Printf("failed to store file metadata: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fileId":   meta.ID,
		"mimeType": meta.MimeType,
		"size":     meta.Size,
	})
}

func (a *API) GetFileHandler(w http.ResponseWriter, r *http.Request) {
	meta, err := a.store.GetFileMetadata(r.PathValue("id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	rc, err := a.files.Get(meta.Hash)
	if err != nil {
		log.Printf("failed to open file %s: %v", meta.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("failed to send file %s: %v", meta.ID, err)
	}
}
