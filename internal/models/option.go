package models

import "time"

// Option is a named site-wide setting.
type Option struct {
	Name      string    `json:"name" gorm:"primaryKey;size:191"`
	Value     string    `json:"value" gorm:"type:text"`
	Autoload  bool      `json:"autoload" gorm:"default:true"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	OptionRemoteImage       = "affprodimp_settings_remote_image"
	OptionAmazonAccessKey   = "affprodimp_amazon_access_key"
	OptionAmazonSecretKey   = "affprodimp_amazon_secret_key"
	OptionAmazonCountryCode = "affprodimp_amazon_country_code"
	OptionAmazonAffiliateID = "affprodimp_amazon_affiliate_id"
)
