// Package admin holds the state of the importer's admin screens: the active
// menu tab, the Amazon API settings form and the import wizard. State only
// changes by dispatching actions to a Store.
package admin

import (
	"errors"
)

// Menu tabs.
const (
	TabDashboard = "dashboard"
	TabImport    = "import"
	TabSettings  = "settings"
)

const (
	ImportTypeCopyPaste = "copy-paste"

	DefaultCountryCode = "us"

	MessageSettingsSaved  = "All the settings have been verified and saved successfully"
	MessageVerifyRejected = "Amazon API settings are not valid"
)

// AmazonCredentials is the credential set exchanged with the settings
// endpoints.
type AmazonCredentials struct {
	AccessKey   string `json:"access_key"`
	SecretKey   string `json:"secret_key"`
	CountryCode string `json:"country_code"`
	AffiliateID string `json:"affiliate_id"`
}

type MenuTabsState struct {
	ActiveTab string
}

type SettingsState struct {
	AmazonAccessKey   string
	AmazonSecretKey   string
	AmazonCountryCode string
	AmazonAffiliateID string

	IsSettingsLoading            bool
	IsAmazonAPISettingsSaving    bool
	IsAmazonAPISettingsVerifying bool

	// Error is empty when the last lifecycle succeeded.
	Error                string
	Message              string
	SettingsToastMessage string
}

// Credentials returns the form fields as a request payload.
func (s SettingsState) Credentials() AmazonCredentials {
	return AmazonCredentials{
		AccessKey:   s.AmazonAccessKey,
		SecretKey:   s.AmazonSecretKey,
		CountryCode: s.AmazonCountryCode,
		AffiliateID: s.AmazonAffiliateID,
	}
}

type ImportState struct {
	ImportType      string
	ImportStepIndex int
}

// State is the composed state of all three slices.
type State struct {
	MenuTabs MenuTabsState
	Settings SettingsState
	Import   ImportState
}

func InitialState() State {
	return State{
		MenuTabs: MenuTabsState{ActiveTab: TabDashboard},
		Settings: SettingsState{AmazonCountryCode: DefaultCountryCode},
	}
}

// Action is anything a Store can dispatch.
type Action interface {
	action()
}

// Menu tab actions.
type SetActiveTab struct{ Tab string }

// Settings form actions.
type (
	SetAmazonAccessKey      struct{ Value string }
	SetAmazonSecretKey      struct{ Value string }
	SetAmazonCountryCode    struct{ Value string }
	SetAmazonAffiliateID    struct{ Value string }
	SetSettingsToastMessage struct{ Value string }
)

// Settings lifecycle actions.
type (
	FetchSettingsPending   struct{}
	FetchSettingsFulfilled struct{ Credentials AmazonCredentials }
	FetchSettingsRejected  struct{ Err error }

	SaveSettingsPending   struct{}
	SaveSettingsFulfilled struct{}
	SaveSettingsRejected  struct{ Err error }

	VerifySettingsPending   struct{}
	VerifySettingsFulfilled struct{}
	VerifySettingsRejected  struct{ Err error }
)

// Import wizard actions.
type (
	SetImportType     struct{ Type string }
	SetImportStepNext struct{}
)

func (SetActiveTab) action()            {}
func (SetAmazonAccessKey) action()      {}
func (SetAmazonSecretKey) action()      {}
func (SetAmazonCountryCode) action()    {}
func (SetAmazonAffiliateID) action()    {}
func (SetSettingsToastMessage) action() {}
func (FetchSettingsPending) action()    {}
func (FetchSettingsFulfilled) action()  {}
func (FetchSettingsRejected) action()   {}
func (SaveSettingsPending) action()     {}
func (SaveSettingsFulfilled) action()   {}
func (SaveSettingsRejected) action()    {}
func (VerifySettingsPending) action()   {}
func (VerifySettingsFulfilled) action() {}
func (VerifySettingsRejected) action()  {}
func (SetImportType) action()           {}
func (SetImportStepNext) action()       {}

func reduceMenuTabs(s MenuTabsState, a Action) MenuTabsState {
	if a, ok := a.(SetActiveTab); ok {
		s.ActiveTab = a.Tab
	}
	return s
}

func reduceSettings(s SettingsState, a Action) SettingsState {
	switch a := a.(type) {
	case SetAmazonAccessKey:
		s.AmazonAccessKey = a.Value
	case SetAmazonSecretKey:
		s.AmazonSecretKey = a.Value
	case SetAmazonCountryCode:
		s.AmazonCountryCode = a.Value
	case SetAmazonAffiliateID:
		s.AmazonAffiliateID = a.Value
	case SetSettingsToastMessage:
		s.SettingsToastMessage = a.Value

	case FetchSettingsPending:
		s.IsSettingsLoading = true
	case FetchSettingsFulfilled:
		s.IsSettingsLoading = false
		s.Error = ""
		s.AmazonAccessKey = a.Credentials.AccessKey
		s.AmazonSecretKey = a.Credentials.SecretKey
		s.AmazonCountryCode = a.Credentials.CountryCode
		s.AmazonAffiliateID = a.Credentials.AffiliateID
	case FetchSettingsRejected:
		s.IsSettingsLoading = false
		s.Error = errorText(a.Err)

	case SaveSettingsPending:
		s.IsAmazonAPISettingsSaving = true
	case SaveSettingsFulfilled:
		s.IsAmazonAPISettingsSaving = false
		s.Error = ""
		s.SettingsToastMessage = MessageSettingsSaved
	case SaveSettingsRejected:
		s.IsAmazonAPISettingsSaving = false
		s.Error = errorText(a.Err)

	case VerifySettingsPending:
		s.IsAmazonAPISettingsVerifying = true
	case VerifySettingsFulfilled:
		s.IsAmazonAPISettingsVerifying = false
		s.Error = ""
	case VerifySettingsRejected:
		s.IsAmazonAPISettingsVerifying = false
		s.Error = MessageVerifyRejected
		var apiErr *APIError
		if errors.As(a.Err, &apiErr) && apiErr.Message != "" {
			s.Error = apiErr.Message
		}
	}
	return s
}

func reduceImport(s ImportState, a Action) ImportState {
	switch a := a.(type) {
	case SetImportType:
		s.ImportType = a.Type
	case SetImportStepNext:
		s.ImportStepIndex++
	}
	return s
}

func reduce(s State, a Action) State {
	return State{
		MenuTabs: reduceMenuTabs(s.MenuTabs, a),
		Settings: reduceSettings(s.Settings, a),
		Import:   reduceImport(s.Import, a),
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
