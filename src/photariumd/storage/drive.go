package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

const (
	defaultDriveAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultDriveUploadBase = "https://www.googleapis.com/upload/drive/v3"
	driveFolderMIME        = "application/vnd.google-apps.folder"
)

// DriveProvider stores gallery assets in an OAuth2-authorized remote drive.
// Authorization happens out of band through the admin OAuth endpoints; the
// provider itself only needs the refresh token, which the oauth2 transport
// exchanges for access tokens as needed.
type DriveProvider struct {
	cfg        DriveConfig
	client     *http.Client
	apiBase    string
	uploadBase string

	// folder path -> drive folder id, filled lazily in nested mode
	mu      sync.Mutex
	folders map[string]string
}

// NewDrive creates a drive provider from a stored configuration.
func NewDrive(cfg DriveConfig) (*DriveProvider, error) {
	if cfg.RefreshToken == "" {
		return nil, apperrors.ErrStorageAuthentication.
			WithMessagef("provider %s: not authorized yet, complete the OAuth flow first", Drive)
	}

	oc := oauthConfig(cfg, "")
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	client := oc.Client(context.Background(), token)

	apiBase := cfg.APIBase
	uploadBase := defaultDriveUploadBase
	if apiBase == "" {
		apiBase = defaultDriveAPIBase
	} else {
		uploadBase = strings.TrimSuffix(apiBase, "/") + "/upload"
	}

	return &DriveProvider{
		cfg:        cfg,
		client:     client,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		uploadBase: strings.TrimSuffix(uploadBase, "/"),
		folders:    make(map[string]string),
	}, nil
}

// oauthConfig builds the oauth2 client configuration for a drive config,
// defaulting to the Google endpoints when none are overridden.
func oauthConfig(cfg DriveConfig, redirectURL string) *oauth2.Config {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" && cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
		Endpoint:     endpoint,
	}
}

// DriveAuthURL returns the URL an administrator visits to grant access.
// Offline access is requested so the exchange yields a refresh token.
func DriveAuthURL(cfg DriveConfig, state, redirectURL string) string {
	return oauthConfig(cfg, redirectURL).AuthCodeURL(state,
		oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// DriveExchangeCode trades an authorization code for a token set. The
// caller persists the refresh token into the provider configuration.
func DriveExchangeCode(ctx context.Context, cfg DriveConfig, code, redirectURL string) (*oauth2.Token, error) {
	token, err := oauthConfig(cfg, redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.ErrStorageAuthentication.
			WithMessagef("provider %s: authorization code exchange failed", Drive).
			WithCause(err)
	}
	if token.RefreshToken == "" {
		return nil, apperrors.ErrStorageAuthentication.
			WithMessagef("provider %s: authorization grant returned no refresh token", Drive)
	}
	return token, nil
}

type driveFile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	MimeType       string `json:"mimeType"`
	Size           string `json:"size,omitempty"`
	WebContentLink string `json:"webContentLink,omitempty"`
}

type driveFileList struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// Put uploads content through the drive multipart upload endpoint.
func (p *DriveProvider) Put(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*StoredRef, error) {
	key := normalizeKey(path)
	name, parent, err := p.placeFile(ctx, key)
	if err != nil {
		return nil, err
	}

	// Replace any existing file at the same logical path
	if existing, err := p.findChild(ctx, parent, name, false); err == nil && existing != nil {
		if err := p.deleteFile(ctx, existing.ID); err != nil {
			return nil, err
		}
	} else if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}

	meta := map[string]interface{}{"name": name}
	if parent != "" {
		meta["parents"] = []string{parent}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	mediaHeader := textproto.MIMEHeader{}
	if contentType != "" {
		mediaHeader.Set("Content-Type", contentType)
	} else {
		mediaHeader.Set("Content-Type", "application/octet-stream")
	}
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	written, err := io.Copy(mediaPart, reader)
	if err != nil {
		return nil, apperrors.ErrStorageUnavailable.
			WithMessagef("provider %s: cannot buffer upload for %s", Drive, key).
			WithCause(err)
	}
	if size > 0 && written != size {
		return nil, apperrors.ErrStorageUnavailable.
			WithMessagef("provider %s: size mismatch for %s: expected %d bytes, read %d", Drive, key, size, written)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	uploadURL := p.uploadBase + "/files?uploadType=multipart"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	var created driveFile
	if err := p.do(req, &created, fmt.Sprintf("upload %s", key)); err != nil {
		return nil, err
	}

	return &StoredRef{
		Provider: Drive,
		Path:     key,
		Size:     written,
	}, nil
}

// placeFile splits a logical path into a file name and the drive folder id
// it belongs to. Flat mode ignores intermediate path segments; nested mode
// materializes them as a folder hierarchy under the configured root.
func (p *DriveProvider) placeFile(ctx context.Context, key string) (name, parentID string, err error) {
	segments := strings.Split(key, "/")
	name = segments[len(segments)-1]
	if name == "" {
		return "", "", apperrors.ErrValidationFailed.WithMessage("empty file name")
	}

	if p.cfg.StorageMode == DriveFlat || len(segments) == 1 {
		return name, p.cfg.FolderID, nil
	}

	parentID = p.cfg.FolderID
	prefix := ""
	for _, seg := range segments[:len(segments)-1] {
		prefix = joinKey(prefix, seg)
		parentID, err = p.ensureFolder(ctx, prefix, seg, parentID)
		if err != nil {
			return "", "", err
		}
	}
	return name, parentID, nil
}

// ensureFolder resolves or creates the folder named seg under parentID,
// caching the resulting id for the folder's full logical path.
func (p *DriveProvider) ensureFolder(ctx context.Context, fullPath, seg, parentID string) (string, error) {
	p.mu.Lock()
	if id, ok := p.folders[fullPath]; ok {
		p.mu.Unlock()
		return id, nil
	}
	p.mu.Unlock()

	existing, err := p.findChild(ctx, parentID, seg, true)
	if err != nil && !apperrors.IsNotFound(err) {
		return "", err
	}

	var id string
	if existing != nil {
		id = existing.ID
	} else {
		meta := map[string]interface{}{
			"name":     seg,
			"mimeType": driveFolderMIME,
		}
		if parentID != "" {
			meta["parents"] = []string{parentID}
		}
		payload, _ := json.Marshal(meta)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.apiBase+"/files", bytes.NewReader(payload))
		if err != nil {
			return "", apperrors.ErrInternal.WithCause(err)
		}
		req.Header.Set("Content-Type", "application/json")

		var created driveFile
		if err := p.do(req, &created, fmt.Sprintf("create folder %s", fullPath)); err != nil {
			return "", err
		}
		id = created.ID
	}

	p.mu.Lock()
	p.folders[fullPath] = id
	p.mu.Unlock()
	return id, nil
}

// findChild looks up a direct child by name under a parent folder.
func (p *DriveProvider) findChild(ctx context.Context, parentID, name string, folder bool) (*driveFile, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", strings.ReplaceAll(name, "'", "\\'"))
	if folder {
		query += fmt.Sprintf(" and mimeType = '%s'", driveFolderMIME)
	} else {
		query += fmt.Sprintf(" and mimeType != '%s'", driveFolderMIME)
	}
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", "1")
	params.Set("fields", "files(id,name,mimeType,size)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.apiBase+"/files?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}

	var list driveFileList
	if err := p.do(req, &list, fmt.Sprintf("look up %s", name)); err != nil {
		return nil, err
	}
	if len(list.Files) == 0 {
		return nil, apperrors.ErrStorageNotFound.
			WithMessagef("provider %s: %s not found", Drive, name)
	}
	return &list.Files[0], nil
}

// resolvePath walks a logical path down the folder hierarchy to a file.
func (p *DriveProvider) resolvePath(ctx context.Context, key string) (*driveFile, error) {
	segments := strings.Split(key, "/")
	name := segments[len(segments)-1]

	parentID := p.cfg.FolderID
	if p.cfg.StorageMode == DriveNested {
		prefix := ""
		for _, seg := range segments[:len(segments)-1] {
			prefix = joinKey(prefix, seg)
			folder, err := p.findChild(ctx, parentID, seg, true)
			if err != nil {
				return nil, err
			}
			parentID = folder.ID
		}
	}
	return p.findChild(ctx, parentID, name, false)
}

// Get streams a stored file's content.
func (p *DriveProvider) Get(ctx context.Context, path string) (io.ReadCloser, *ObjectInfo, error) {
	key := normalizeKey(path)
	file, err := p.resolvePath(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.apiBase+"/files/"+file.ID+"?alt=media", nil)
	if err != nil {
		return nil, nil, apperrors.ErrInternal.WithCause(err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, p.classify(err, 0, fmt.Sprintf("download %s", key))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, p.classify(nil, resp.StatusCode, fmt.Sprintf("download %s", key))
	}

	info := &ObjectInfo{
		Key:         key,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}
	return resp.Body, info, nil
}

// Delete removes a stored file. An absent file is not an error.
func (p *DriveProvider) Delete(ctx context.Context, path string) error {
	key := normalizeKey(path)
	file, err := p.resolvePath(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return p.deleteFile(ctx, file.ID)
}

func (p *DriveProvider) deleteFile(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		p.apiBase+"/files/"+id, nil)
	if err != nil {
		return apperrors.ErrInternal.WithCause(err)
	}
	err = p.do(req, nil, "delete file")
	if err != nil && apperrors.IsNotFound(err) {
		return nil
	}
	return err
}

// Tree enumerates the folder hierarchy under root.
func (p *DriveProvider) Tree(ctx context.Context, root string, maxDepth int) (*TreeNode, error) {
	key := normalizeKey(root)
	parentID := p.cfg.FolderID

	if key != "" {
		prefix := ""
		for _, seg := range strings.Split(key, "/") {
			prefix = joinKey(prefix, seg)
			folder, err := p.findChild(ctx, parentID, seg, true)
			if err != nil {
				return nil, err
			}
			parentID = folder.ID
		}
	}

	node := &TreeNode{
		Name: nodeName(key, "/"),
		Path: key,
	}
	if err := p.listFolder(ctx, node, parentID, clampDepth(maxDepth)); err != nil {
		return nil, err
	}
	sortTree(node)
	return node, nil
}

func (p *DriveProvider) listFolder(ctx context.Context, parent *TreeNode, folderID string, depth int) error {
	if depth <= 0 {
		return nil
	}

	query := "trashed = false"
	if folderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", folderID)
	}

	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "nextPageToken,files(id,name,mimeType,size)")
		params.Set("pageSize", "1000")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			p.apiBase+"/files?"+params.Encode(), nil)
		if err != nil {
			return apperrors.ErrInternal.WithCause(err)
		}

		var list driveFileList
		if err := p.do(req, &list, fmt.Sprintf("list folder %s", parent.Path)); err != nil {
			return err
		}

		for _, f := range list.Files {
			child := &TreeNode{
				Name:   f.Name,
				Path:   joinKey(parent.Path, f.Name),
				IsFile: f.MimeType != driveFolderMIME,
			}
			if !child.IsFile {
				if err := p.listFolder(ctx, child, f.ID, depth-1); err != nil {
					return err
				}
			}
			parent.Children = append(parent.Children, child)
		}

		if list.NextPageToken == "" {
			return nil
		}
		pageToken = list.NextPageToken
	}
}

// PublicURL grants anyone-with-link read access to the file and returns its
// content link.
func (p *DriveProvider) PublicURL(ctx context.Context, path string) (string, error) {
	key := normalizeKey(path)
	file, err := p.resolvePath(ctx, key)
	if err != nil {
		return "", err
	}

	perm, _ := json.Marshal(map[string]string{"role": "reader", "type": "anyone"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/files/"+file.ID+"/permissions", bytes.NewReader(perm))
	if err != nil {
		return "", apperrors.ErrInternal.WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := p.do(req, nil, fmt.Sprintf("share %s", key)); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("fields", "webContentLink")
	req, err = http.NewRequestWithContext(ctx, http.MethodGet,
		p.apiBase+"/files/"+file.ID+"?"+params.Encode(), nil)
	if err != nil {
		return "", apperrors.ErrInternal.WithCause(err)
	}

	var meta driveFile
	if err := p.do(req, &meta, fmt.Sprintf("fetch link for %s", key)); err != nil {
		return "", err
	}
	if meta.WebContentLink == "" {
		return p.apiBase + "/files/" + file.ID + "?alt=media", nil
	}
	return meta.WebContentLink, nil
}

// ValidateConnection proves the refresh token still yields usable access
// tokens by issuing a minimal listing request.
func (p *DriveProvider) ValidateConnection(ctx context.Context) error {
	params := url.Values{}
	params.Set("pageSize", "1")
	params.Set("fields", "files(id)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.apiBase+"/files?"+params.Encode(), nil)
	if err != nil {
		return apperrors.ErrInternal.WithCause(err)
	}
	return p.do(req, nil, "validate connection")
}

// Type returns the provider variant id
func (p *DriveProvider) Type() ID {
	return Drive
}

// Location returns a human-readable location description
func (p *DriveProvider) Location() string {
	if p.cfg.FolderID != "" {
		return fmt.Sprintf("drive folder %s", p.cfg.FolderID)
	}
	return "drive root"
}

// do executes a request, decodes a JSON response into out when non-nil, and
// maps failures onto the shared error taxonomy.
func (p *DriveProvider) do(req *http.Request, out interface{}, action string) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return p.classify(err, 0, action)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return p.classify(nil, resp.StatusCode, action)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.ErrStorageUnavailable.
				WithMessagef("provider %s: malformed response during %s", Drive, action).
				WithCause(err)
		}
	}
	return nil
}

// classify maps transport errors and HTTP statuses onto the shared storage
// error taxonomy. Token refresh failures surface as *oauth2.RetrieveError
// from the transport and count as authentication failures.
func (p *DriveProvider) classify(err error, status int, action string) error {
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return apperrors.ErrStorageAuthentication.
				WithMessagef("provider %s: token refresh rejected during %s", Drive, action).
				WithCause(err)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return apperrors.ErrStorageTransient.
				WithMessagef("provider %s: %s timed out", Drive, action).
				WithCause(err)
		}
		// Refresh failures wrapped by the transport mention the grant
		if strings.Contains(err.Error(), "invalid_grant") {
			return apperrors.ErrStorageAuthentication.
				WithMessagef("provider %s: authorization revoked during %s", Drive, action).
				WithCause(err)
		}
		return apperrors.ErrStorageTransient.
			WithMessagef("provider %s: %s failed", Drive, action).
			WithCause(err)
	}

	switch {
	case status == http.StatusUnauthorized:
		return apperrors.ErrStorageAuthentication.
			WithMessagef("provider %s: credentials rejected during %s", Drive, action)
	case status == http.StatusForbidden:
		return apperrors.ErrStorageAccessDenied.
			WithMessagef("provider %s: access denied during %s", Drive, action)
	case status == http.StatusNotFound:
		return apperrors.ErrStorageNotFound.
			WithMessagef("provider %s: not found during %s", Drive, action)
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.ErrStorageTransient.
			WithMessagef("provider %s: %s failed with status %d", Drive, action, status)
	default:
		return apperrors.ErrStorageUnavailable.
			WithMessagef("provider %s: %s failed with status %d", Drive, action, status)
	}
}
