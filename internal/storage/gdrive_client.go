package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient archives completed results to Google Drive under
// <root>/<year>/<month>/<day>
type DriveClient struct {
	service *drive.Service
	rootID  string
}

// NewDriveClient authorizes with the OAuth client in credentialsFile and
// makes sure the root folder exists. The token is cached in tokenFile; when
// it is missing the authorization code is read from stdin once.
func NewDriveClient(credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	oauthConfig, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	tok, err := loadToken(ctx, oauthConfig, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}

	dc := &DriveClient{service: srv}
	dc.rootID, err = dc.findOrCreateFolder(folderName, "")
	if err != nil {
		return nil, fmt.Errorf("unable to prepare folder %q: %v", folderName, err)
	}
	return dc, nil
}

// loadToken reads the cached token, falling back to the interactive flow
func loadToken(ctx context.Context, oauthConfig *oauth2.Config, tokenFile string) (*oauth2.Token, error) {
	if f, err := os.Open(tokenFile); err == nil {
		defer f.Close()
		tok := &oauth2.Token{}
		if err := json.NewDecoder(f).Decode(tok); err == nil {
			return tok, nil
		}
	}

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser:\n%v\n", authURL)
	fmt.Print("Enter authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %v", err)
	}

	tok, err := oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token: %v", err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("unable to encode token: %v", err)
	}
	if err := os.WriteFile(tokenFile, data, 0600); err != nil {
		return nil, fmt.Errorf("unable to cache oauth token: %v", err)
	}
	return tok, nil
}

// Upload archives a completed result as a text file plus metadata JSON and
// returns a shareable link to the metadata file
func (dc *DriveClient) Upload(result *types.TranscriptionResult) (string, error) {
	folderID, err := dc.dateFolder(result.CompletedAt)
	if err != nil {
		return "", err
	}

	name := baseName(result)

	txt := &drive.File{Name: name + ".txt", Parents: []string{folderID}}
	if _, err := dc.service.Files.Create(txt).Media(strings.NewReader(result.Text)).Do(); err != nil {
		return "", fmt.Errorf("failed to upload transcript: %v", err)
	}

	metaJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %v", err)
	}

	meta := &drive.File{Name: name + "_meta.json", Parents: []string{folderID}}
	created, err := dc.service.Files.Create(meta).Media(bytes.NewReader(metaJSON)).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload metadata: %v", err)
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

func (dc *DriveClient) dateFolder(t time.Time) (string, error) {
	parent := dc.rootID
	for _, name := range dateParts(t) {
		id, err := dc.findOrCreateFolder(name, parent)
		if err != nil {
			return "", fmt.Errorf("failed to prepare folder %s: %v", name, err)
		}
		parent = id
	}
	return parent, nil
}

// findOrCreateFolder returns the id of the named folder under parentID,
// creating it if needed. An empty parentID searches the whole drive.
func (dc *DriveClient) findOrCreateFolder(name, parentID string) (string, error) {
	r, err := dc.service.Files.List().Q(folderQuery(name, parentID)).Spaces("drive").Fields("files(id)").Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}

	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

func dateParts(t time.Time) []string {
	return []string{
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	}
}

func folderQuery(name, parentID string) string {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}
	return q
}

// escapeQuery escapes a value for a single-quoted Drive query string
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
