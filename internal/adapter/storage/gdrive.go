package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

const folderMimeType = "application/vnd.google-apps.folder"

type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

// NewGDrive authenticates with a service-account key when one is
// configured, otherwise with an OAuth client secret plus refresh token.
func NewGDrive(ctx context.Context, cfg config.GDriveConfig) (*GDriveStorage, error) {
	var opt option.ClientOption
	if cfg.CredentialsFile != "" {
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	} else {
		oauthCfg, err := OAuthConfig(cfg.ClientSecretFile)
		if err != nil {
			return nil, err
		}
		ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		opt = option.WithTokenSource(ts)
	}

	service, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

// OAuthConfig reads a Google OAuth client secret limited to files the
// application itself creates.
func OAuthConfig(clientSecretPath string) (*oauth2.Config, error) {
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}
	b, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}
	return cfg, nil
}

// Create refuses names already present in the folder, then streams the
// upload through the returned writer.
func (g *GDriveStorage) Create(ctx context.Context, name string) (domain.ArtifactWriter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	existing, err := g.find(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactExists, g.Location(name))
	}

	pr, pw := io.Pipe()
	w := &pipeWriter{pw: pw, done: make(chan error, 1), location: g.Location(name)}

	go func() {
		fileMetadata := &drive.File{
			Name:     name,
			Parents:  []string{g.folderID},
			MimeType: "application/gzip",
		}
		_, err := g.service.Files.Create(fileMetadata).
			Media(pr).
			Context(ctx).
			Do()
		if err != nil {
			err = fmt.Errorf("failed to upload to gdrive: %w", err)
		}
		pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

// List returns the non-folder files directly inside the folder.
func (g *GDriveStorage) List(ctx context.Context) ([]domain.Object, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false and mimeType != '%s'",
		escapeQuery(g.folderID), folderMimeType)

	var objects []domain.Object
	err := g.service.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, size, modifiedTime)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, file := range page.Files {
				modTime, err := time.Parse(time.RFC3339, file.ModifiedTime)
				if err != nil {
					return fmt.Errorf("bad modifiedTime %q for %s: %w", file.ModifiedTime, file.Name, err)
				}
				objects = append(objects, domain.Object{
					Name:    file.Name,
					ModTime: modTime,
					Size:    file.Size,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return objects, nil
}

func (g *GDriveStorage) Delete(ctx context.Context, name string) error {
	file, err := g.find(ctx, name)
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("file not found: %s", name)
	}

	if err := g.service.Files.Delete(file.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func (g *GDriveStorage) find(ctx context.Context, name string) (*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false",
		escapeQuery(g.folderID), escapeQuery(name))

	fileList, err := g.service.Files.List().
		Q(query).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	if len(fileList.Files) == 0 {
		return nil, nil
	}
	return fileList.Files[0], nil
}

func (g *GDriveStorage) Location(name string) string {
	return "gdrive://" + g.folderID + "/" + name
}

func (g *GDriveStorage) Type() string {
	return "gdrive"
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}
