package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/refdata"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func newTestClassifier(t *testing.T) (*Classifier, string, string) {
	t.Helper()
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	refDir := t.TempDir()
	ipDir := t.TempDir()

	writeFile(t, filepath.Join(refDir, "bots.json"), `{"entries": [
		{"name": "Googlebot", "pattern": "Googlebot"}
	]}`)
	writeFile(t, filepath.Join(refDir, "apps.json"), `{"entries": [
		{"name": "AntennaPod", "pattern": "AntennaPod"},
		{"name": "Podcast Addict Crawler", "pattern": "PodcastAddictCrawler", "category": "bot"}
	]}`)
	writeFile(t, filepath.Join(refDir, "libraries.json"), `{"entries": [
		{"name": "okhttp", "pattern": "okhttp"}
	]}`)
	writeFile(t, filepath.Join(refDir, "browsers.json"), `{"entries": [
		{"name": "Firefox", "pattern": "Firefox"},
		{"name": "Chrome", "pattern": "Chrome"}
	]}`)
	writeFile(t, filepath.Join(refDir, "devices.json"), `{"entries": [
		{"name": "iPhone", "pattern": "iPhone", "category": "mobile"}
	]}`)
	writeFile(t, filepath.Join(refDir, "referrers.json"), `{"entries": [
		{"name": "Podcast Index", "pattern": "podcastindex\\.org", "category": "host"}
	]}`)

	writeFile(t, filepath.Join(ipDir, "googlebot.ips"), "66.249.64.0/19\n2001:4860:4801::/48\n")

	store := refdata.NewStore(refDir, logger)
	ipcat := NewIPCategorizer(ipDir, logger)
	return New(store, ipcat, logger), refDir, ipDir
}

func TestClassify_BotFamily(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, ipCategory := c.Classify("Mozilla/5.0 (compatible; Googlebot/2.1)", "", "203.0.113.10")
	if result == nil {
		t.Fatal("Expected a classification")
	}
	if result.Type != TypeBot {
		t.Errorf("Expected bot type, got %s", result.Type)
	}
	if result.Name != "Googlebot" {
		t.Errorf("Expected Googlebot, got %s", result.Name)
	}
	if !result.IsBot {
		t.Error("Bot family match must set IsBot regardless of IP category")
	}
	if ipCategory != CategoryUnknown {
		t.Errorf("Expected unknown IP category, got %s", ipCategory)
	}
}

func TestClassify_FamilyOrder_AppBeatsBrowser(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	// Matches both the AntennaPod app pattern and the Firefox browser
	// pattern; the app family is scanned first and must win.
	result, _ := c.Classify("AntennaPod/3.2 Firefox/120.0", "", "")
	if result == nil {
		t.Fatal("Expected a classification")
	}
	if result.Type != TypeApp {
		t.Errorf("Expected app classification to win, got %s", result.Type)
	}
	if result.Name != "AntennaPod" {
		t.Errorf("Expected AntennaPod, got %s", result.Name)
	}
	if result.IsBot {
		t.Error("Plain app must not be a bot")
	}
}

func TestClassify_AppWithBotCategory(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, _ := c.Classify("PodcastAddictCrawler/1.0", "", "")
	if result == nil {
		t.Fatal("Expected a classification")
	}
	if result.Type != TypeApp {
		t.Errorf("Expected app type, got %s", result.Type)
	}
	if !result.IsBot {
		t.Error("App entry tagged with bot category must set IsBot")
	}
}

func TestClassify_DeviceMatchForNonBots(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, _ := c.Classify("AntennaPod/3.2 (iPhone)", "", "")
	if result == nil {
		t.Fatal("Expected a classification")
	}
	if result.DeviceName != "iPhone" {
		t.Errorf("Expected iPhone device, got %q", result.DeviceName)
	}
	if result.DeviceCategory != DeviceMobile {
		t.Errorf("Expected mobile device category, got %q", result.DeviceCategory)
	}
}

func TestClassify_NoDeviceMatchForBots(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, _ := c.Classify("Googlebot (iPhone)", "", "")
	if result == nil {
		t.Fatal("Expected a classification")
	}
	if result.DeviceName != "" {
		t.Errorf("Bots must skip device matching, got %q", result.DeviceName)
	}
}

func TestClassify_ReferrerOnlyForBrowsers(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, _ := c.Classify("Firefox/120.0 Safari-ish", "https://podcastindex.org/podcast/1", "")
	if result == nil {
		t.Fatal("Expected a classification")
	}
	if result.Type != TypeBrowser {
		t.Fatalf("Expected browser type, got %s", result.Type)
	}
	if result.ReferrerName != "Podcast Index" {
		t.Errorf("Expected referrer match, got %q", result.ReferrerName)
	}
	if result.ReferrerCategory != "host" {
		t.Errorf("Expected host referrer category, got %q", result.ReferrerCategory)
	}

	// App matches never consult the referrer dataset
	appResult, _ := c.Classify("AntennaPod/3.2", "https://podcastindex.org/", "")
	if appResult == nil {
		t.Fatal("Expected a classification")
	}
	if appResult.ReferrerName != "" {
		t.Errorf("App classification must not carry a referrer match, got %q", appResult.ReferrerName)
	}
}

func TestClassify_Unclassified(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, ipCategory := c.Classify("CompletelyUnknownAgent/0.1", "", "203.0.113.10")
	if result != nil {
		t.Fatalf("Expected no classification, got %+v", result)
	}
	if ipCategory.IsBot() {
		t.Error("Unknown IP category must not be a bot")
	}
}

func TestClassify_UnclassifiedWithCrawlerIP(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, ipCategory := c.Classify("CompletelyUnknownAgent/0.1", "", "66.249.66.1")
	if result != nil {
		t.Fatalf("Expected no classification, got %+v", result)
	}
	if ipCategory != CategoryGooglebot {
		t.Errorf("Expected googlebot category, got %s", ipCategory)
	}
	if !ipCategory.IsBot() {
		t.Error("Crawler IP category must be a bot")
	}
}

func TestClassify_CrawlerIPForcesBotFlag(t *testing.T) {
	c, _, _ := newTestClassifier(t)

	result, _ := c.Classify("AntennaPod/3.2", "", "66.249.66.1")
	if result == nil {
		t.Fatal("Expected a classification")
	}
	if !result.IsBot {
		t.Error("Crawler IP must force IsBot even for an app match")
	}
}
