package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/domain/model"
	apperrors "github.com/jemaat/portal/internal/errors"
	corefuncs "github.com/jemaat/portal/internal/http/templates/core"
	"github.com/jemaat/portal/internal/service"
)

const (
	homeSectionSize = 5
	ledgerResource  = "ledger"
)

//nolint:gochecknoglobals // sections shown on the home page, in order
var homeResources = []string{"announcements", "schedules", "devotionals"}

// ContentHandlers serves the public site and the back-office content screens.
type ContentHandlers struct {
	pageResponder
	Content *service.ContentService
}

type homeSection struct {
	Resource    model.ContentResource
	Items       []model.ContentRecord
	Unavailable bool
}

// withToken runs fn with the signed-in client's bearer token.
func withToken(r *http.Request, fn func(ctx context.Context, token string) error) error {
	s, ok := ClientSessionFromContext(r.Context())
	if !ok {
		return domainauth.ErrSessionExpired
	}
	return s.WithToken(r.Context(), fn)
}

// Home shows the latest public content. A section whose listing fails is
// shown as unavailable instead of failing the page.
func (h *ContentHandlers) Home(w http.ResponseWriter, r *http.Request) {
	q := url.Values{"per_page": {strconv.Itoa(homeSectionSize)}}
	sections := make([]homeSection, 0, len(homeResources))
	for _, name := range homeResources {
		res, ok := model.LookupContentResource(name)
		if !ok {
			continue
		}
		sec := homeSection{Resource: res}
		page, err := h.Content.List(r.Context(), "", res, q)
		if err != nil {
			h.logger().WarnContext(r.Context(), "home section failed", "resource", name, "error", err)
			sec.Unavailable = true
		} else {
			sec.Items = page.Items
			if len(sec.Items) > homeSectionSize {
				sec.Items = sec.Items[:homeSectionSize]
			}
		}
		sections = append(sections, sec)
	}

	data := NewTemplateData(r, PageMeta{Title: "Beranda", CurrentPage: PageHome}).
		With("Sections", sections).
		Build()
	h.render(w, r, http.StatusOK, data)
}

// PublicList returns a handler listing a public resource for anyone.
func (h *ContentHandlers) PublicList(res model.ContentResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size := ParsePage(r)
		list, err := h.Content.List(r.Context(), "", res, backendQuery(r, page, size))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !IsBrowserRequest(r) {
			WriteJSON(w, http.StatusOK, listResponse(list, page, size))
			return
		}
		data := NewTemplateData(r, PageMeta{Title: res.Title, CurrentPage: PagePublicList}).
			With("Resource", res).
			With("Items", list.Items).
			WithPagination(PaginationData{Page: page, PageSize: size, Total: list.Total, BasePath: r.URL.Path}).
			Build()
		h.render(w, r, http.StatusOK, data)
	}
}

// PublicDetail returns a handler showing one record of a public resource.
func (h *ContentHandlers) PublicDetail(res model.ContentResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.Content.Get(r.Context(), "", res, r.PathValue("id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !IsBrowserRequest(r) {
			WriteJSON(w, http.StatusOK, rec)
			return
		}
		title := corefuncs.RecordTitle(rec)
		data := NewTemplateData(r, PageMeta{Title: title, CurrentPage: PagePublicDetail}).
			With("Resource", res).
			With("Record", rec).
			Build()
		h.render(w, r, http.StatusOK, data)
	}
}

type contentListResponse struct {
	Items   []model.ContentRecord `json:"items"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

func listResponse(list model.ContentPage, page, size int) contentListResponse {
	items := list.Items
	if items == nil {
		items = []model.ContentRecord{}
	}
	return contentListResponse{Items: items, Total: list.Total, Page: page, PerPage: size}
}

// AdminList returns the management listing of res under basePath.
func (h *ContentHandlers) AdminList(res model.ContentResource, basePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size := ParsePage(r)
		var list model.ContentPage
		err := withToken(r, func(ctx context.Context, token string) error {
			var err error
			list, err = h.Content.List(ctx, token, res, backendQuery(r, page, size))
			return err
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !IsBrowserRequest(r) {
			WriteJSON(w, http.StatusOK, listResponse(list, page, size))
			return
		}

		current := PageContentList
		if res.Name == ledgerResource {
			current = PageFinance
		}
		b := NewTemplateData(r, PageMeta{Title: res.Title, CurrentPage: current})
		if current == PageFinance {
			b.With("Summary", service.SummarizeLedger(list.Items))
		}
		data := b.
			With("Resource", res).
			With("Items", list.Items).
			With("Fields", FormFor(res.Name)).
			With("BasePath", basePath).
			WithPagination(PaginationData{Page: page, PageSize: size, Total: list.Total, BasePath: basePath}).
			Build()
		h.render(w, r, http.StatusOK, data)
	}
}

// AdminNew renders an empty form for res.
func (h *ContentHandlers) AdminNew(res model.ContentResource, basePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderForm(w, r, http.StatusOK, contentForm{
			Resource: res, BasePath: basePath, Mode: FormModeCreate, Action: basePath,
		})
	}
}

// AdminEdit renders the form for an existing record.
func (h *ContentHandlers) AdminEdit(res model.ContentResource, basePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var rec model.ContentRecord
		err := withToken(r, func(ctx context.Context, token string) error {
			var err error
			rec, err = h.Content.Get(ctx, token, res, id)
			return err
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.renderForm(w, r, http.StatusOK, contentForm{
			Resource: res, BasePath: basePath, Mode: FormModeEdit, Action: basePath + "/" + id, ID: id,
			Values: recordValues(rec, FormFor(res.Name)),
		})
	}
}

// AdminCreate validates and forwards a new record.
func (h *ContentHandlers) AdminCreate(res model.ContentResource, basePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := contentForm{Resource: res, BasePath: basePath, Mode: FormModeCreate, Action: basePath}
		h.save(w, r, form, func(ctx context.Context, token string, fields map[string]any) (model.ContentRecord, error) {
			return h.Content.Create(ctx, token, res, fields)
		})
	}
}

// AdminUpdate validates and forwards changes to an existing record.
func (h *ContentHandlers) AdminUpdate(res model.ContentResource, basePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		form := contentForm{Resource: res, BasePath: basePath, Mode: FormModeEdit, Action: basePath + "/" + id, ID: id}
		h.save(w, r, form, func(ctx context.Context, token string, fields map[string]any) (model.ContentRecord, error) {
			return h.Content.Update(ctx, token, res, id, fields)
		})
	}
}

type saveFunc func(ctx context.Context, token string, fields map[string]any) (model.ContentRecord, error)

func (h *ContentHandlers) save(w http.ResponseWriter, r *http.Request, form contentForm, do saveFunc) {
	api := isJSONBody(r)
	var fields map[string]any
	var errs map[string]string
	if api {
		fields, errs = parseContentJSON(w, r, form.Resource.Name)
	} else {
		fields, form.Values, errs = parseContentForm(r, form.Resource.Name)
	}
	if len(errs) > 0 {
		if api || !IsBrowserRequest(r) {
			WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error": string(apperrors.ErrCodeValidation), "message": errMsgFixBelow, "fields": errs,
			})
			return
		}
		form.Errors = errs
		form.Message = errMsgFixBelow
		h.renderForm(w, r, http.StatusBadRequest, form)
		return
	}

	var rec model.ContentRecord
	err := withToken(r, func(ctx context.Context, token string) error {
		var err error
		rec, err = do(ctx, token, fields)
		return err
	})
	if err != nil {
		// Rejections from the church API go back onto the form.
		if !api && IsBrowserRequest(r) && (apperrors.IsValidation(err) || apperrors.IsConflict(err)) {
			status, _ := errorStatus(err)
			form.Errors = fieldErrorsFrom(err)
			form.Message = publicMessage(err)
			h.renderForm(w, r, status, form)
			return
		}
		h.fail(w, r, err)
		return
	}

	if api || !IsBrowserRequest(r) {
		status := http.StatusOK
		if form.Mode == FormModeCreate {
			status = http.StatusCreated
		}
		WriteJSON(w, status, rec)
		return
	}
	triggerToast(w, "Data tersimpan.", "success")
	redirectTo(w, r, form.BasePath)
}

// AdminDelete removes a record.
func (h *ContentHandlers) AdminDelete(res model.ContentResource, basePath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		err := withToken(r, func(ctx context.Context, token string) error {
			return h.Content.Delete(ctx, token, res, id)
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !IsBrowserRequest(r) || r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		triggerToast(w, "Data dihapus.", "success")
		redirectTo(w, r, basePath)
	}
}

// AdminExport streams the church API's export of res to the client.
func (h *ContentHandlers) AdminExport(res model.ContentResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var file service.ExportFile
		err := withToken(r, func(ctx context.Context, token string) error {
			var err error
			file, err = h.Content.Export(ctx, token, res, r.URL.Query())
			return err
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", file.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(file.Body); err != nil {
			h.logger().DebugContext(r.Context(), "export write failed", "error", err)
		}
	}
}

type contentForm struct {
	Resource model.ContentResource
	BasePath string
	Mode     FormMode
	Action   string
	ID       string
	Values   map[string]string
	Errors   map[string]string
	Message  string
}

func (h *ContentHandlers) renderForm(w http.ResponseWriter, r *http.Request, status int, f contentForm) {
	title := "Tambah " + f.Resource.Title
	if f.Mode == FormModeEdit {
		title = "Ubah " + f.Resource.Title
	}
	if f.Values == nil {
		f.Values = map[string]string{}
	}
	b := NewTemplateData(r, PageMeta{Title: title, CurrentPage: PageContentForm}).
		With("Resource", f.Resource).
		With("Fields", FormFor(f.Resource.Name)).
		With("Values", f.Values).
		With("FormMode", f.Mode).
		With("Action", f.Action).
		With("BasePath", f.BasePath).
		With("RecordID", f.ID).
		WithFieldErrors(f.Errors)
	if f.Message != "" {
		b.WithError(f.Message)
	}
	h.render(w, r, status, b.Build())
}
