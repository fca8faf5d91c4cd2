package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

// presignExpiry is the lifetime of presigned download URLs
const presignExpiry = 15 * time.Minute

// ObjectStoreProvider implements storage on an S3-compatible object store.
// The same implementation serves both configured flavors: the primary store
// uses virtual-host addressing, the secondary (typically self-hosted) uses
// path-style addressing against a custom endpoint.
type ObjectStoreProvider struct {
	id     ID
	client *s3.Client
	config ObjectStoreConfig
}

// NewObjectStore creates an S3-compatible provider for the given flavor.
func NewObjectStore(id ID, cfg ObjectStoreConfig) (*ObjectStoreProvider, error) {
	if id != S3Main && id != S3Cold {
		return nil, errInvalidConfig(id, "not an object store provider id")
	}

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}

	if cfg.Endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					SigningRegion:     cfg.Region,
					HostnameImmutable: true,
				}, nil
			},
		)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Self-hosted S3-compatible stores generally require path-style
		o.UsePathStyle = id == S3Cold
	})

	return &ObjectStoreProvider{
		id:     id,
		client: client,
		config: cfg,
	}, nil
}

// Put uploads content to the bucket.
func (p *ObjectStoreProvider) Put(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*StoredRef, error) {
	key := normalizeKey(path)
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return nil, p.classify(err, fmt.Sprintf("upload object %s", key))
	}

	return &StoredRef{
		Provider: p.id,
		Path:     key,
		Size:     size,
	}, nil
}

// Get downloads an object from the bucket.
func (p *ObjectStoreProvider) Get(ctx context.Context, path string) (io.ReadCloser, *ObjectInfo, error) {
	key := normalizeKey(path)
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, p.classify(err, fmt.Sprintf("download object %s", key))
	}

	info := &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		ETag:         aws.ToString(output.ETag),
		LastModified: aws.ToTime(output.LastModified),
	}
	return output.Body, info, nil
}

// Delete removes an object. Deleting an absent object is not an error,
// matching S3 semantics.
func (p *ObjectStoreProvider) Delete(ctx context.Context, path string) error {
	key := normalizeKey(path)
	if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		classified := p.classify(err, fmt.Sprintf("delete object %s", key))
		if apperrors.IsNotFound(classified) {
			return nil
		}
		return classified
	}
	return nil
}

// Tree builds a folder view of the bucket from the flat key listing under
// root, using "/" as the delimiter convention.
func (p *ObjectStoreProvider) Tree(ctx context.Context, root string, maxDepth int) (*TreeNode, error) {
	prefix := normalizeKey(root)
	listPrefix := prefix
	if listPrefix != "" {
		listPrefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.config.Bucket),
		Prefix: aws.String(listPrefix),
	})

	node := &TreeNode{
		Name: nodeName(prefix, "/"),
		Path: prefix,
	}
	depth := clampDepth(maxDepth)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, p.classify(err, fmt.Sprintf("list objects under %s", prefix))
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			if rel == "" {
				continue
			}
			insertTreePath(node, prefix, rel, depth)
		}
	}

	sortTree(node)
	return node, nil
}

// insertTreePath grafts one object key onto the tree, creating intermediate
// folder nodes and truncating below the depth cap.
func insertTreePath(root *TreeNode, basePath, rel string, depth int) {
	segments := strings.Split(rel, "/")
	current := root
	path := basePath

	for i, seg := range segments {
		if i >= depth {
			return
		}
		path = joinKey(path, seg)
		isFile := i == len(segments)-1

		var child *TreeNode
		for _, c := range current.Children {
			if c.Name == seg && c.IsFile == isFile {
				child = c
				break
			}
		}
		if child == nil {
			child = &TreeNode{Name: seg, Path: path, IsFile: isFile}
			current.Children = append(current.Children, child)
		}
		current = child
	}
}

func sortTree(node *TreeNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.IsFile != b.IsFile {
			return !a.IsFile // folders first
		}
		return a.Name < b.Name
	})
	for _, c := range node.Children {
		sortTree(c)
	}
}

// PublicURL generates a presigned download URL for an object.
func (p *ObjectStoreProvider) PublicURL(ctx context.Context, path string) (string, error) {
	key := normalizeKey(path)
	presignClient := s3.NewPresignClient(p.client)

	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", p.classify(err, fmt.Sprintf("presign URL for %s", key))
	}
	return request.URL, nil
}

// ValidateConnection proves the credentials can reach the bucket.
func (p *ObjectStoreProvider) ValidateConnection(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.config.Bucket),
	})
	if err != nil {
		return p.classify(err, fmt.Sprintf("reach bucket %s", p.config.Bucket))
	}
	return nil
}

// Type returns the provider variant id
func (p *ObjectStoreProvider) Type() ID {
	return p.id
}

// Location returns the endpoint and bucket
func (p *ObjectStoreProvider) Location() string {
	if p.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s", p.config.Endpoint, p.config.Bucket)
	}
	return fmt.Sprintf("s3://%s (%s)", p.config.Bucket, p.config.Region)
}

// classify maps an SDK error onto the shared storage error taxonomy so
// callers never see backend-native error types.
func (p *ObjectStoreProvider) classify(err error, action string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.ErrStorageTransient.
			WithMessagef("provider %s: %s timed out", p.id, action).
			WithCause(err)
	}

	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return apperrors.ErrStorageNotFound.
			WithMessagef("provider %s: %s", p.id, action).
			WithCause(err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return apperrors.ErrStorageNotFound.
				WithMessagef("provider %s: %s", p.id, action).
				WithCause(err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken",
			"InvalidToken", "TokenRefreshRequired", "AuthorizationHeaderMalformed":
			return apperrors.ErrStorageAuthentication.
				WithMessagef("provider %s: credentials rejected during %s", p.id, action).
				WithCause(err)
		case "AccessDenied", "AllAccessDisabled":
			return apperrors.ErrStorageAccessDenied.
				WithMessagef("provider %s: access denied during %s", p.id, action).
				WithCause(err)
		case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout",
			"ServiceUnavailable", "InternalError":
			return apperrors.ErrStorageTransient.
				WithMessagef("provider %s: %s failed transiently", p.id, action).
				WithCause(err)
		}
	}

	return apperrors.ErrStorageUnavailable.
		WithMessagef("provider %s: failed to %s", p.id, action).
		WithCause(err)
}
