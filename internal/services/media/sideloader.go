package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"affimporter/internal/config"
	"affimporter/internal/logger"
	"affimporter/internal/metrics"
	"affimporter/internal/models"
	"affimporter/internal/store"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// MaxImageBytes caps a single downloaded image.
const MaxImageBytes = 10 << 20

var (
	ErrFetchFailed = errors.New("image fetch failed")
	ErrNotImage    = errors.New("downloaded file is not an image")
	ErrTooLarge    = errors.New("downloaded image is too large")

	// ErrForbiddenHost is returned when an image URL resolves to an address
	// inside the service's own network.
	ErrForbiddenHost = errors.New("image host resolves to a non-public address")
)

// Sideloader downloads remote images into the media directory and records
// them as attachment posts.
type Sideloader struct {
	store   store.PostStore
	client  *retryablehttp.Client
	limiter *rate.Limiter
	dir     string
	baseURL string
	logger  *logger.Logger
	now     func() time.Time
}

func NewSideloader(s store.PostStore, cfg *config.Config, log *logger.Logger) *Sideloader {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.MediaFetchTimeout
	client.RetryMax = cfg.MediaFetchRetries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = log.KeyValue()
	if !cfg.MediaAllowPrivateHosts {
		if transport, ok := client.HTTPClient.Transport.(*http.Transport); ok {
			transport.Proxy = nil
			transport.DialContext = (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
				Control:   publicOnly,
			}).DialContext
		}
	}

	limit := rate.Limit(cfg.MediaFetchRate)
	if cfg.MediaFetchRate <= 0 {
		limit = rate.Inf
	}

	return &Sideloader{
		store:   s,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		dir:     cfg.MediaDir,
		baseURL: strings.TrimRight(cfg.MediaBaseURL, "/"),
		logger:  log,
		now:     time.Now,
	}
}

// Sideload fetches imageURL and stores it as an attachment of parentID,
// returning the attachment id.
func (s *Sideloader) Sideload(ctx context.Context, imageURL string, parentID uint, title string) (uint, error) {
	id, err := s.sideload(ctx, imageURL, parentID, title)
	if err != nil {
		metrics.MediaFetchTotal.WithLabelValues("failed").Inc()
		return 0, err
	}
	metrics.MediaFetchTotal.WithLabelValues("ok").Inc()
	return id, nil
}

func (s *Sideloader) sideload(ctx context.Context, imageURL string, parentID uint, title string) (uint, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	body, err := s.fetch(ctx, imageURL)
	if err != nil {
		return 0, err
	}

	mt := mimetype.Detect(body)
	if !strings.HasPrefix(mt.String(), "image/") {
		return 0, fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}

	name := uuid.New().String() + mt.Extension()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create media directory: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write media file: %w", err)
	}

	attachment := &models.Post{
		ParentID: parentID,
		Title:    title,
		Slug:     strings.TrimSuffix(name, mt.Extension()),
		Status:   models.PostStatusInherit,
		Type:     models.PostTypeAttachment,
		GUID:     s.baseURL + "/" + name,
		MimeType: mt.String(),
		PostDate: s.now(),
	}
	var attachmentID uint
	err = s.store.Transaction(ctx, func(tx store.PostStore) error {
		id, err := tx.InsertPost(ctx, attachment)
		if err != nil {
			return err
		}
		if err := tx.UpdatePostMeta(ctx, id, models.MetaAttachedFile, name); err != nil {
			return err
		}
		if err := tx.UpdatePostMeta(ctx, id, models.MetaAttachmentSize, strconv.Itoa(len(body))); err != nil {
			return err
		}
		attachmentID = id
		return nil
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("Failed to remove orphaned media file %s: %v", path, rmErr)
		}
		return 0, err
	}

	s.logger.Debug("Sideloaded %s as attachment %d for post %d", imageURL, attachmentID, parentID)
	return attachmentID, nil
}

func (s *Sideloader) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if len(body) > MaxImageBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

// publicOnly is a net.Dialer Control hook. It runs after name resolution, so
// it also covers redirects and hostnames that resolve to internal addresses.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !publicIP(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	return nil
}

func publicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}
