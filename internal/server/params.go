package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// multipartMemory is held in memory per multipart request; larger parts
// spill to temporary files.
const multipartMemory = 32 << 20

var errBodyNotObject = errors.New("request body must be a JSON object")

// readsBody reports whether parameters come from the body for method.
// Other methods read the query string.
func readsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// extractParams collects the request parameters: the body for POST, PUT and
// DELETE, the query string otherwise, then the route's path segments on top.
func extractParams(w http.ResponseWriter, r *http.Request, maxBody int64) (map[string]any, map[string][]*multipart.FileHeader, error) {
	params := make(map[string]any)
	var files map[string][]*multipart.FileHeader

	if readsBody(r.Method) {
		var err error
		if files, err = readBody(w, r, params, maxBody); err != nil {
			return nil, nil, err
		}
	} else {
		mergeValues(params, r.URL.Query())
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" || key == "" {
				continue
			}
			params[key] = rctx.URLParams.Values[i]
		}
	}
	return params, files, nil
}

func readBody(w http.ResponseWriter, r *http.Request, params map[string]any, maxBody int64) (map[string][]*multipart.FileHeader, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "application/json":
		var body any
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("decode body: %w", err)
		}
		obj, ok := body.(map[string]any)
		if !ok {
			if body == nil {
				return nil, nil
			}
			return nil, errBodyNotObject
		}
		for k, v := range obj {
			params[k] = v
		}
		return nil, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		mergeValues(params, r.PostForm)
		return nil, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		mergeValues(params, r.MultipartForm.Value)
		return r.MultipartForm.File, nil
	}

	// Bodies without a content type, or of any other type, carry no
	// parameters.
	return nil, nil
}

// mergeValues copies form or query values: one value becomes a string, a
// repeated key becomes a list.
func mergeValues(params map[string]any, values url.Values) {
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			params[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			params[k] = list
		}
	}
}
