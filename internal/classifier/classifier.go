package classifier

import (
	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/refdata"
)

// UserAgentType is the signature family a user agent matched.
type UserAgentType string

const (
	TypeApp     UserAgentType = "app"
	TypeBot     UserAgentType = "bot"
	TypeBrowser UserAgentType = "browser"
	TypeLibrary UserAgentType = "library"
)

// DeviceCategory comes from the device signature dataset.
type DeviceCategory string

const (
	DeviceAuto         DeviceCategory = "auto"
	DeviceComputer     DeviceCategory = "computer"
	DeviceMobile       DeviceCategory = "mobile"
	DeviceSmartSpeaker DeviceCategory = "smart_speaker"
	DeviceSmartTV      DeviceCategory = "smart_tv"
	DeviceWatch        DeviceCategory = "watch"
)

// Classification is the structured result of matching a raw user-agent
// string against the reference datasets. It is computed per request and
// never mutated afterwards.
type Classification struct {
	UserAgent        string
	Type             UserAgentType
	Name             string
	IsBot            bool
	DeviceName       string
	DeviceCategory   DeviceCategory
	ReferrerName     string
	ReferrerCategory string
}

// familyOrder is the fixed scan order; the first family with a matching
// entry wins and later families are never consulted.
var familyOrder = []struct {
	Type     UserAgentType
	Category string
}{
	{TypeBot, "bots"},
	{TypeApp, "apps"},
	{TypeLibrary, "libraries"},
	{TypeBrowser, "browsers"},
}

// Classifier resolves user agents, referrers and remote addresses into
// classifications using injected reference data.
type Classifier struct {
	refdata *refdata.Store
	ipcat   *IPCategorizer
	logger  *pterm.Logger
}

// New creates a classifier over the given reference stores.
func New(store *refdata.Store, ipcat *IPCategorizer, logger *pterm.Logger) *Classifier {
	return &Classifier{
		refdata: store,
		ipcat:   ipcat,
		logger:  logger,
	}
}

// Classify matches the user agent against the signature families and the
// remote address against the crawler range lists. The classification is nil
// when no family matched; the caller stores the record as unclassified with
// the bot flag driven by the IP category alone.
func (c *Classifier) Classify(userAgent, referrer, remoteAddr string) (*Classification, IPCategory) {
	ipCategory := c.ipcat.Categorize(remoteAddr)

	for _, family := range familyOrder {
		entry := c.refdata.Match(family.Category, userAgent)
		if entry == nil {
			continue
		}

		classification := &Classification{
			UserAgent: userAgent,
			Type:      family.Type,
			Name:      entry.Name,
			// Some app and library signatures are still bots, tagged with a
			// bot category on the entry itself.
			IsBot: family.Type == TypeBot || entry.Category == "bot" || ipCategory.IsBot(),
		}

		if family.Type != TypeBot {
			if device := c.refdata.Match("devices", userAgent); device != nil {
				classification.DeviceName = device.Name
				classification.DeviceCategory = DeviceCategory(device.Category)
			}
		}

		if family.Type == TypeBrowser && referrer != "" {
			if ref := c.refdata.Match("referrers", referrer); ref != nil {
				classification.ReferrerName = ref.Name
				classification.ReferrerCategory = ref.Category
			}
		}

		return classification, ipCategory
	}

	c.logger.Trace("Unclassified user agent", c.logger.Args("user_agent", userAgent))
	return nil, ipCategory
}
