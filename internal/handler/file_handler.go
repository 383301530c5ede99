package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
	"nimbusdrive/internal/storage"
)

type FileHandler struct {
	fileService   *service.FileService
	accessService *service.AccessService
}

// QuotaErrorResponse называет план и числовой порог, чтобы клиент мог
// показать точное сообщение об отказе
type QuotaErrorResponse struct {
	Error      string `json:"error"`
	Plan       string `json:"plan"`
	LimitBytes int64  `json:"limit_bytes"`
}

func NewFileHandler(
	fileService *service.FileService,
	accessService *service.AccessService,
) *FileHandler {
	return &FileHandler{
		fileService:   fileService,
		accessService: accessService,
	}
}

// UploadFile принимает multipart-загрузку файла
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Размер части известен после разбора multipart-формы;
	// нулевой размер - валидный пустой файл
	result, err := h.fileService.AcceptUpload(
		r.Context(),
		userID,
		file,
		header.Size,
		header.Filename,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(domain.FileUploadResponse{
		UUID:      result.UUID,
		Name:      result.Name,
		MIMEType:  result.MIMEType,
		SizeBytes: result.SizeBytes,
		ObjectKey: result.ObjectKey,
		Backend:   result.Backend,
		OwnerID:   result.OwnerID,
		CreatedAt: result.CreatedAt,
	})
}

// DownloadFile выдает дескриптор доступа и перенаправляет на него.
// Для S3 это подписанная ссылка хранилища, для локального бэкенда -
// маршрут стриминга с временным токеном.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.GetFile(r.Context(), fileUUID, userID)
	if err != nil {
		writeFileError(w, err)
		return
	}

	opts := service.DownloadOptions{}
	if ttlParam := r.URL.Query().Get("ttl"); ttlParam != "" {
		if ttlSeconds, err := strconv.ParseInt(ttlParam, 10, 64); err == nil && ttlSeconds > 0 {
			opts.TTL = time.Duration(ttlSeconds) * time.Second
		}
	}

	handle, err := h.accessService.RequestDownload(r.Context(), file.ObjectKey, opts)
	if err != nil {
		writeFileError(w, err)
		return
	}

	if handle.URL != "" {
		http.Redirect(w, r, handle.URL, http.StatusFound)
		return
	}

	target := fmt.Sprintf("/v1/files/%s/content?token=%s", file.UUID, url.QueryEscape(handle.Token))
	http.Redirect(w, r, target, http.StatusFound)
}

// StreamContent отдает байты объекта локального бэкенда по токену.
// Токен и есть авторизация: он короткоживущий и привязан к ключу.
func (h *FileHandler) StreamContent(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing download token", http.StatusUnauthorized)
		return
	}

	key, err := h.accessService.ResolveToken(token)
	if err != nil {
		http.Error(w, "Invalid or expired download token", http.StatusForbidden)
		return
	}

	obj, err := h.fileService.Backend().GetStream(r.Context(), key)
	if err != nil {
		writeFileError(w, err)
		return
	}
	defer obj.Close()

	if obj.ContentType() != "" {
		w.Header().Set("Content-Type", obj.ContentType())
	}
	if obj.ContentLength() > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength(), 10))
	}

	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("[FileHandler] failed to stream object %s: %v", key, err)
	}
}

// DeleteFile удаляет файл: метаданные, объект и учет квоты
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if err := h.fileService.RemoveObject(r.Context(), fileUUID, userID); err != nil {
		writeFileError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListFiles возвращает файлы пользователя
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	files, err := h.fileService.ListFiles(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Failed to list files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

// writeUploadError переводит ошибки загрузки в HTTP-ответы. Отказы по
// квоте структурированы, ошибки бэкенда наружу не детализируются.
func writeUploadError(w http.ResponseWriter, err error) {
	var violation *domain.QuotaViolation
	if errors.As(err, &violation) {
		status := http.StatusRequestEntityTooLarge
		if errors.Is(violation.Reason, domain.ErrStorageQuotaExceeded) {
			status = http.StatusInsufficientStorage
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(QuotaErrorResponse{
			Error:      violation.Reason.Error(),
			Plan:       string(violation.Plan),
			LimitBytes: violation.LimitBytes,
		})
		return
	}

	log.Printf("[FileHandler] upload failed: %v", err)
	http.Error(w, "Upload failed, please try again", http.StatusInternalServerError)
}

func writeFileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, service.ErrFileNotFound):
		http.Error(w, "File not found", http.StatusNotFound)
	case errors.Is(err, service.ErrAccessDenied):
		http.Error(w, "Access denied", http.StatusForbidden)
	default:
		log.Printf("[FileHandler] request failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
