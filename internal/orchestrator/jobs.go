package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/project"
	"github.com/local/mtreport/internal/store"
)

// Upload form fields that carry files, mapped to their saved names.
var fileFields = []struct{ field, name string }{
	{"zip", "evidencias.zip"},
	{"logo_top_left", "logo_top_left"},
	{"logo_top_right", "logo_top_right"},
	{"logo_bottom_left", "logo_bottom_left"},
	{"logo_bottom_right", "logo_bottom_right"},
	{"cover_image", "cover_image"},
}

type submitResp struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	PollURL     string `json:"poll_url"`
	DownloadURL string `json:"download_url"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

func (o *Orchestrator) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, o.cfg.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("upload exceeds %d MB", o.cfg.MaxUploadMB), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	jobID := uuid.NewString()
	jobDir := filepath.Join(o.cfg.JobsDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		jsonError(w, "cannot create job dir", http.StatusInternalServerError)
		return
	}
	discard := func() { _ = os.RemoveAll(jobDir) }

	proj := project.Project{
		Title:        strings.TrimSpace(r.FormValue("title")),
		Subtitle:     strings.TrimSpace(r.FormValue("subtitle")),
		Introduction: strings.TrimSpace(r.FormValue("introduction")),
		OutputDir:    filepath.Join(jobDir, "out"),
	}
	h := sha256.New()
	_, _ = io.WriteString(h, proj.Title+"\x00"+proj.Subtitle+"\x00"+proj.Introduction+"\x00")

	saved := map[string]string{}
	for _, ff := range fileFields {
		file, hdr, err := r.FormFile(ff.field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			discard()
			jsonError(w, ff.field+": "+err.Error(), http.StatusBadRequest)
			return
		}
		name := ff.name
		if ext := strings.ToLower(filepath.Ext(sanitizeFilename(hdr.Filename))); ext != "" && filepath.Ext(name) == "" {
			name += ext
		}
		dst := filepath.Join(jobDir, name)
		err = saveUpload(file, dst, h)
		file.Close()
		if err != nil {
			discard()
			jsonError(w, "cannot save upload", http.StatusInternalServerError)
			return
		}
		saved[ff.field] = dst
	}
	proj.ZipPath = saved["zip"]
	proj.CoverImage = saved["cover_image"]
	proj.Logos = project.Logos{
		TopLeft:     saved["logo_top_left"],
		TopRight:    saved["logo_top_right"],
		BottomLeft:  saved["logo_bottom_left"],
		BottomRight: saved["logo_bottom_right"],
	}

	if err := proj.Validate(); err != nil {
		discard()
		var missing *project.MissingInputError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing input", "fields": missing.Fields})
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	digest := hex.EncodeToString(h.Sum(nil))
	if prev, err := o.deps.Status.GetJobByDigest(ctx, digest); err == nil {
		if st, ok, _ := o.deps.Status.Get(ctx, prev); ok && st.Status != store.StateFailed {
			discard()
			log.Info().Str("job_id", prev).Msg("duplicate submission; returning existing job")
			writeJSON(w, http.StatusOK, newSubmitResp(prev, st.Status, true))
			return
		}
	}

	now := time.Now()
	if err := o.deps.Status.Set(ctx, jobID, store.Status{Status: store.StateQueued, Message: "queued", Start: &now,
		Metadata: map[string]any{"title": proj.Title, "dir": jobDir}}); err != nil {
		discard()
		log.Error().Err(err).Str("job_id", jobID).Msg("status store unavailable")
		jsonError(w, "status store unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := o.deps.Status.SetDigestJob(ctx, digest, jobID); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("failed to record submission digest")
	}

	log.Info().Str("job_id", jobID).Str("title", proj.Title).Msg("job created")
	o.wg.Add(1)
	go o.run(jobID, proj)

	writeJSON(w, http.StatusAccepted, newSubmitResp(jobID, store.StateQueued, false))
}

func newSubmitResp(jobID, status string, dup bool) submitResp {
	return submitResp{
		JobID:       jobID,
		Status:      status,
		PollURL:     "/reports/" + jobID,
		DownloadURL: "/reports/" + jobID + "/download",
		Duplicate:   dup,
	}
}

// run executes one job behind the gate and records its outcome.
func (o *Orchestrator) run(jobID string, proj project.Project) {
	defer o.wg.Done()
	logger := log.With().Str("job_id", jobID).Logger()
	ctx := o.base
	if o.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.JobTimeout)
		defer cancel()
	}
	// Status writes must land even after ctx is cancelled.
	bg := context.Background()
	st, _, _ := o.deps.Status.Get(bg, jobID)

	if o.deps.Gate != nil {
		release, ok, err := o.deps.Gate.TryAcquire(ctx)
		if err == nil && !ok {
			st.Message = "waiting for a run slot"
			_ = o.deps.Status.Set(bg, jobID, st)
			release, err = o.deps.Gate.Acquire(ctx)
		}
		if err != nil {
			o.fail(bg, jobID, st, fmt.Errorf("waiting for a run slot: %w", err))
			return
		}
		defer release()
	}

	st.Status = store.StateProcessing
	st.Message = "started"
	_ = o.deps.Status.Set(bg, jobID, st)

	res, err := o.deps.Runner.Run(ctx, proj, func(pct int, stage string) {
		st.Progress = pct
		st.Message = stage
		if err := o.deps.Status.Set(bg, jobID, st); err != nil {
			logger.Warn().Err(err).Msg("progress update failed")
		}
	})
	if err != nil {
		o.fail(bg, jobID, st, err)
		return
	}

	end := time.Now()
	st.Status = store.StateSuccess
	st.Progress = 100
	st.Message = "completed"
	st.Archive = res.ArchivePath
	st.End = &end
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}
	st.Metadata["report_pages"] = res.ReportPages
	st.Metadata["attachments"] = len(res.Tasks)
	if len(res.Missing) > 0 {
		st.Metadata["missing"] = res.Missing
	}
	if res.S3URL != "" {
		st.Metadata["s3_url"] = res.S3URL
	}
	if err := o.deps.Status.Set(bg, jobID, st); err != nil {
		logger.Error().Err(err).Msg("failed to record job completion")
	}
	logger.Info().Str("archive", res.ArchivePath).Msg("job complete")
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, st store.Status, err error) {
	end := time.Now()
	st.Status = store.StateFailed
	st.Message = err.Error()
	st.End = &end
	if setErr := o.deps.Status.Set(ctx, jobID, st); setErr != nil {
		log.Error().Err(setErr).Str("job_id", jobID).Msg("failed to record job failure")
	}
	log.Error().Err(err).Str("job_id", jobID).Msg("job failed")
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		jsonError(w, "status store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	resp := map[string]any{
		"success":    st.Status == store.StateSuccess,
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
	}
	if st.Status == store.StateSuccess {
		resp["download_url"] = "/reports/" + id + "/download"
		for _, k := range []string{"report_pages", "attachments", "missing", "s3_url"} {
			if v, ok := st.Metadata[k]; ok {
				resp[k] = v
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (o *Orchestrator) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		jsonError(w, "status store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if st.Status != store.StateSuccess || st.Archive == "" {
		jsonError(w, "report not ready: "+st.Status, http.StatusConflict)
		return
	}
	f, err := os.Open(st.Archive)
	if err != nil {
		jsonError(w, "archive no longer available", http.StatusGone)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "archive unreadable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(st.Archive)))
	http.ServeContent(w, r, filepath.Base(st.Archive), info.ModTime(), f)
}

func saveUpload(src multipart.File, dst string, h hash.Hash) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.MultiWriter(out, h), src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		return "unnamed"
	}
	return name
}
