package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"affimporter/internal/config"
	"affimporter/internal/logger"
	"affimporter/internal/models"
	"affimporter/internal/store"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
)

// MessageInvalidSettings is shown when verification fails without a more
// specific reason.
const MessageInvalidSettings = "Amazon API settings are not valid"

const messageInvalidGeneral = "Settings are not valid"

const DefaultCountryCode = "us"

var ErrInvalidSettings = errors.New("invalid settings")

// ValidationError carries an operator facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSettings
}

// Marketplaces served by the Product Advertising API, keyed by country code.
var Marketplaces = map[string]string{
	"au": "www.amazon.com.au",
	"be": "www.amazon.com.be",
	"br": "www.amazon.com.br",
	"ca": "www.amazon.ca",
	"de": "www.amazon.de",
	"eg": "www.amazon.eg",
	"es": "www.amazon.es",
	"fr": "www.amazon.fr",
	"in": "www.amazon.in",
	"it": "www.amazon.it",
	"jp": "www.amazon.co.jp",
	"mx": "www.amazon.com.mx",
	"nl": "www.amazon.nl",
	"pl": "www.amazon.pl",
	"sa": "www.amazon.sa",
	"se": "www.amazon.se",
	"sg": "www.amazon.sg",
	"tr": "www.amazon.com.tr",
	"ae": "www.amazon.ae",
	"uk": "www.amazon.co.uk",
	"us": "www.amazon.com",
}

type AmazonSettings struct {
	AccessKey   string `json:"access_key" binding:"required"`
	SecretKey   string `json:"secret_key" binding:"required"`
	CountryCode string `json:"country_code" binding:"required"`
	AffiliateID string `json:"affiliate_id" binding:"required"`
}

type GeneralSettings struct {
	RemoteImage string `json:"remote_image" binding:"required,oneof=Yes No"`
}

var fieldLabels = map[string]string{
	"AccessKey":   "access key",
	"SecretKey":   "secret key",
	"CountryCode": "country code",
	"AffiliateID": "affiliate id",
	"RemoteImage": "remote image",
}

type Service struct {
	store              store.OptionStore
	cache              *cache.Cache
	remoteImageDefault string
	logger             *logger.Logger
}

func NewService(s store.OptionStore, cfg *config.Config, log *logger.Logger) *Service {
	ttl := cfg.SettingsCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		store:              s,
		cache:              cache.New(ttl, 2*ttl),
		remoteImageDefault: cfg.RemoteImageDefault,
		logger:             log,
	}
}

// option returns the stored value, or fallback when it was never saved.
func (s *Service) option(ctx context.Context, name, fallback string) (string, error) {
	if v, ok := s.cache.Get(name); ok {
		return v.(string), nil
	}

	v, err := s.store.GetOption(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		v, err = fallback, nil
	}
	if err != nil {
		return "", err
	}

	s.cache.SetDefault(name, v)
	return v, nil
}

func (s *Service) setOption(ctx context.Context, name, value string) error {
	s.cache.Delete(name)
	if err := s.store.UpdateOption(ctx, name, value); err != nil {
		return err
	}
	s.cache.SetDefault(name, value)
	return nil
}

func (s *Service) Amazon(ctx context.Context) (AmazonSettings, error) {
	var out AmazonSettings
	fields := []struct {
		name     string
		fallback string
		dst      *string
	}{
		{models.OptionAmazonAccessKey, "", &out.AccessKey},
		{models.OptionAmazonSecretKey, "", &out.SecretKey},
		{models.OptionAmazonCountryCode, DefaultCountryCode, &out.CountryCode},
		{models.OptionAmazonAffiliateID, "", &out.AffiliateID},
	}

	for _, f := range fields {
		v, err := s.option(ctx, f.name, f.fallback)
		if err != nil {
			return AmazonSettings{}, fmt.Errorf("failed to load Amazon settings: %w", err)
		}
		*f.dst = v
	}
	return out, nil
}

// VerifyAmazon checks that every credential is present and the country code
// names a known marketplace.
func (s *Service) VerifyAmazon(a AmazonSettings) error {
	a = normalize(a)
	if err := validate(&a, MessageInvalidSettings); err != nil {
		return err
	}
	if _, ok := Marketplaces[a.CountryCode]; !ok {
		return &ValidationError{Message: fmt.Sprintf("%s: unsupported country code %q", MessageInvalidSettings, a.CountryCode)}
	}
	return nil
}

// SaveAmazon verifies then stores the credentials.
func (s *Service) SaveAmazon(ctx context.Context, a AmazonSettings) error {
	a = normalize(a)
	if err := s.VerifyAmazon(a); err != nil {
		return err
	}

	values := [][2]string{
		{models.OptionAmazonAccessKey, a.AccessKey},
		{models.OptionAmazonSecretKey, a.SecretKey},
		{models.OptionAmazonCountryCode, a.CountryCode},
		{models.OptionAmazonAffiliateID, a.AffiliateID},
	}
	for _, kv := range values {
		if err := s.setOption(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save Amazon settings: %w", err)
		}
	}

	s.logger.Info("Amazon API settings updated for marketplace %s", Marketplaces[a.CountryCode])
	return nil
}

// RemoteImage is the stored image handling mode, "Yes" or "No".
func (s *Service) RemoteImage(ctx context.Context) (string, error) {
	return s.option(ctx, models.OptionRemoteImage, s.remoteImageDefault)
}

func (s *Service) General(ctx context.Context) (GeneralSettings, error) {
	mode, err := s.RemoteImage(ctx)
	if err != nil {
		return GeneralSettings{}, fmt.Errorf("failed to load general settings: %w", err)
	}
	return GeneralSettings{RemoteImage: mode}, nil
}

func (s *Service) SaveGeneral(ctx context.Context, g GeneralSettings) error {
	if err := validate(&g, messageInvalidGeneral); err != nil {
		return err
	}
	if err := s.setOption(ctx, models.OptionRemoteImage, g.RemoteImage); err != nil {
		return fmt.Errorf("failed to save general settings: %w", err)
	}
	return nil
}

func normalize(a AmazonSettings) AmazonSettings {
	a.AccessKey = strings.TrimSpace(a.AccessKey)
	a.SecretKey = strings.TrimSpace(a.SecretKey)
	a.CountryCode = strings.ToLower(strings.TrimSpace(a.CountryCode))
	a.AffiliateID = strings.TrimSpace(a.AffiliateID)
	return a
}

func validate(obj interface{}, message string) error {
	err := binding.Validator.ValidateStruct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		label := fieldLabels[verrs[0].Field()]
		if verrs[0].Tag() == "required" {
			return &ValidationError{Message: fmt.Sprintf("%s: %s is required", message, label)}
		}
		return &ValidationError{Message: fmt.Sprintf("%s: %s is invalid", message, label)}
	}
	return &ValidationError{Message: message}
}
