package service

import (
	"context"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/civil"

	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/drive"
	"github.com/andresuchdata/fleetdocs/internal/extraction"
	"github.com/andresuchdata/fleetdocs/internal/repository/memory"
	"github.com/andresuchdata/fleetdocs/internal/storage"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func datePtr(y int, m time.Month, d int) *civil.Date {
	v := date(y, m, d)
	return &v
}

type spyCache struct {
	stored      map[string]*domain.UpcomingSurveys
	gets        int
	invalidated []string
	failGet     bool
}

func newSpyCache() *spyCache {
	return &spyCache{stored: make(map[string]*domain.UpcomingSurveys)}
}

func spyKey(f domain.UpcomingSurveyFilter) string {
	return f.CompanyID + "|" + f.ShipName + "|" + f.Status + "|" + f.Today.String()
}

func (c *spyCache) Get(_ context.Context, f domain.UpcomingSurveyFilter) (*domain.UpcomingSurveys, bool, error) {
	c.gets++
	if c.failGet {
		return nil, false, errors.New("redis unavailable")
	}
	v, ok := c.stored[spyKey(f)]
	return v, ok, nil
}

func (c *spyCache) Set(_ context.Context, f domain.UpcomingSurveyFilter, v *domain.UpcomingSurveys) error {
	c.stored[spyKey(f)] = v
	return nil
}

func (c *spyCache) InvalidateCompany(_ context.Context, companyID string) error {
	c.invalidated = append(c.invalidated, companyID)
	for k := range c.stored {
		delete(c.stored, k)
	}
	return nil
}

func (c *spyCache) InvalidateAll(context.Context) error {
	c.stored = make(map[string]*domain.UpcomingSurveys)
	return nil
}

type fakeDrive struct {
	folders  []string
	uploaded map[string][]byte
	deleted  []string
}

func (d *fakeDrive) DeleteFile(_ context.Context, fileID string) error {
	d.deleted = append(d.deleted, fileID)
	return nil
}

func (d *fakeDrive) EnsureFolderPath(_ context.Context, path string) (string, error) {
	d.folders = append(d.folders, path)
	return "folder-" + path, nil
}

func (d *fakeDrive) UploadFile(_ context.Context, folderID, name, contentType string, r io.Reader) (*drive.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if d.uploaded == nil {
		d.uploaded = make(map[string][]byte)
	}
	d.uploaded[folderID+"/"+name] = data
	return &drive.File{ID: "drive-" + name, Name: name, MimeType: contentType}, nil
}

type memArchive struct {
	objects   map[string][]byte
	uploadErr error
}

func newMemArchive() *memArchive {
	return &memArchive{objects: make(map[string][]byte)}
}

func (a *memArchive) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for k, v := range a.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (a *memArchive) DownloadObject(context.Context, string, string) error {
	return errors.New("not supported")
}

func (a *memArchive) GetObject(_ context.Context, key string) ([]byte, error) {
	v, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return v, nil
}

func (a *memArchive) UploadObject(_ context.Context, key string, data []byte, _ string) error {
	if a.uploadErr != nil {
		return a.uploadErr
	}
	a.objects[key] = append([]byte(nil), data...)
	return nil
}

type stubExtractor struct {
	result *extraction.Result
}

func (e stubExtractor) Extract(context.Context, domain.UploadedFile) (*extraction.Result, error) {
	return e.result, nil
}

type fixture struct {
	ships   *memory.Store
	certs   *memory.Store
	cache   *spyCache
	calc    *survey.Calculator
	fleet   *ShipService
	surveys *SurveyService
}

func newFixture(t interface{ Fatalf(string, ...interface{}) }) *fixture {
	calc, err := survey.NewCalculator(survey.DefaultSettings())
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	store := memory.New()
	c := newSpyCache()
	f := &fixture{
		ships: store,
		certs: store,
		cache: c,
		calc:  calc,
		fleet: NewShipService(store, store, calc, c, nil),
	}
	f.surveys = NewSurveyService(store, calc, c, nil, nil, time.UTC)
	f.surveys.now = func() time.Time { return time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) certificates(opts CertificateServiceOptions) *CertificateService {
	if opts.Cache == nil {
		opts.Cache = f.cache
	}
	return NewCertificateService(f.ships, f.certs, f.fleet, f.calc, opts)
}

var civilInvalid = civil.Date{Year: 2024, Month: time.February, Day: 30}
