// Package parsestub is a small in-memory stand-in for the Parse class REST endpoints.
// It is used for local dry runs and by tests.
package parsestub

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const parseTimeLayout = "2006-01-02T15:04:05.000Z"

// ErrorResponse 与 Parse 的错误响应格式一致。
type ErrorResponse struct {
	Code  int    `json:"code,omitempty"`
	Error string `json:"error"`
}

// Store 按类名保存对象。
type Store struct {
	mu      sync.RWMutex
	classes map[string][]map[string]any
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{classes: make(map[string][]map[string]any), now: time.Now}
}

// Create 保存对象并返回生成的 objectId 与创建时间。
func (s *Store) Create(class string, obj map[string]any) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
	created := s.now().UTC().Format(parseTimeLayout)
	obj["objectId"] = id
	obj["createdAt"] = created
	obj["updatedAt"] = created
	s.classes[class] = append(s.classes[class], obj)
	return id, created
}

// Find returns a page of objects ordered by order ("-field" for descending).
func (s *Store) Find(class, order string, skip, limit int) []map[string]any {
	s.mu.RLock()
	objs := make([]map[string]any, len(s.classes[class]))
	copy(objs, s.classes[class])
	s.mu.RUnlock()

	if order != "" {
		desc := strings.HasPrefix(order, "-")
		field := strings.TrimPrefix(order, "-")
		sort.SliceStable(objs, func(i, j int) bool {
			a, b := toString(objs[i][field]), toString(objs[j][field])
			if desc {
				return a > b
			}
			return a < b
		})
	}

	if skip >= len(objs) {
		return []map[string]any{}
	}
	objs = objs[skip:]
	if limit > 0 && limit < len(objs) {
		objs = objs[:limit]
	}
	return objs
}

// Count returns the number of stored objects of class.
func (s *Store) Count(class string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.classes[class])
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Handler 封装了 Parse 类接口的 HTTP 处理器方法。
type Handler struct {
	store         *Store
	applicationID string
}

// NewHandler creates a Handler. An empty applicationID accepts any id.
func NewHandler(store *Store, applicationID string) *Handler {
	return &Handler{store: store, applicationID: applicationID}
}

// NewRouter registers the class routes below mountPath, e.g. "/parse".
func NewRouter(h *Handler, mountPath string) *mux.Router {
	r := mux.NewRouter()
	classes := r.PathPrefix(strings.TrimSuffix(mountPath, "/") + "/classes").Subrouter()
	classes.Use(h.requireApplicationID)
	classes.HandleFunc("/{className}", h.CreateObjectHandler).Methods(http.MethodPost)
	classes.HandleFunc("/{className}", h.FindObjectsHandler).Methods(http.MethodGet)
	return r
}

func (h *Handler) requireApplicationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Parse-Application-Id")
		if id == "" || (h.applicationID != "" && id != h.applicationID) {
			writeJSONResponse(w, http.StatusForbidden, ErrorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateObjectHandler 处理 POST /classes/{className}。
func (h *Handler) CreateObjectHandler(w http.ResponseWriter, r *http.Request) {
	className := mux.Vars(r)["className"]

	var obj map[string]any
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil || obj == nil {
		writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{Code: 107, Error: "invalid JSON"})
		return
	}

	id, created := h.store.Create(className, obj)
	log.Printf("parsestub: 创建 %s/%s", className, id)

	w.Header().Set("Location", r.URL.Path+"/"+id)
	writeJSONResponse(w, http.StatusCreated, map[string]string{
		"objectId":  id,
		"createdAt": created,
	})
}

// FindObjectsHandler 处理 GET /classes/{className}，支持 order、skip 和 limit。
func (h *Handler) FindObjectsHandler(w http.ResponseWriter, r *http.Request) {
	className := mux.Vars(r)["className"]
	q := r.URL.Query()

	skip, err := queryInt(q.Get("skip"), 0)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{Code: 102, Error: "invalid skip"})
		return
	}
	limit, err := queryInt(q.Get("limit"), 100)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, ErrorResponse{Code: 102, Error: "invalid limit"})
		return
	}

	results := h.store.Find(className, q.Get("order"), skip, limit)
	writeJSONResponse(w, http.StatusOK, map[string]any{"results": results})
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("parsestub: 无法编码 JSON 响应: %v", err)
		}
	}
}
