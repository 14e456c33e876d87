package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Service struct {
	srv *drive.Service
}

func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	if strings.TrimSpace(credentialsJSON) == "" {
		return nil, fmt.Errorf("drive credentials are not configured")
	}

	config, err := google.JWTConfigFromJSON([]byte(credentialsJSON), drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
}

func fromDrive(f *drive.File) *File {
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
		WebViewLink:  f.WebViewLink,
	}
}

func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}

	var files []*File
	err := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size, webViewLink)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, fromDrive(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}

	return files, nil
}

func (s *Service) GetFile(ctx context.Context, fileID string) (*File, error) {
	f, err := s.srv.Files.Get(fileID).
		Fields("id, name, mimeType, modifiedTime, size, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get file %s: %w", fileID, err)
	}
	return fromDrive(f), nil
}

func (s *Service) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	resp, err := s.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("unable to download file: %w", err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

// UploadFile creates a file in folderID and returns its metadata.
func (s *Service) UploadFile(ctx context.Context, folderID, name, contentType string, r io.Reader) (*File, error) {
	meta := &drive.File{Name: name, MimeType: contentType}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	f, err := s.srv.Files.Create(meta).
		Media(r).
		Fields("id, name, mimeType, modifiedTime, size, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to upload %s: %w", name, err)
	}
	return fromDrive(f), nil
}

func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	if err := s.srv.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to delete file %s: %w", fileID, err)
	}
	return nil
}

func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	return s.walkFolders(ctx, path, false)
}

// EnsureFolderPath resolves path like FindFolderByPath, creating missing
// folders on the way.
func (s *Service) EnsureFolderPath(ctx context.Context, path string) (string, error) {
	return s.walkFolders(ctx, path, true)
}

func (s *Service) walkFolders(ctx context.Context, path string, create bool) (string, error) {
	currentID := "root"

	for _, folder := range splitPath(path) {
		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}

		if len(result.Files) > 0 {
			currentID = result.Files[0].Id
			continue
		}
		if !create {
			return "", fmt.Errorf("folder not found: %s", folder)
		}

		created, err := s.srv.Files.Create(&drive.File{
			Name:     folder,
			MimeType: folderMimeType,
			Parents:  []string{currentID},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("error creating folder %s: %w", folder, err)
		}
		currentID = created.Id
	}

	return currentID, nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// escapeQuery escapes a value for a Drive query string literal.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
