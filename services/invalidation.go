// services/invalidation.go
package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"battle-league-system/utils"
)

// viewInvalidator notifies the rendering layer's cache that a view is stale.
// Fired after successful mutations only; a miss is logged, never propagated.
type viewInvalidator struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

var defaultInvalidator *viewInvalidator

// InitViewInvalidation configures the hook from the environment. When
// CACHE_INVALIDATION_URL is unset the hook stays a no-op.
func InitViewInvalidation() {
	baseURL := os.Getenv("CACHE_INVALIDATION_URL")
	if baseURL == "" {
		log.Println("⚠️  CACHE_INVALIDATION_URL not set — view invalidation disabled")
		return
	}
	defaultInvalidator = &viewInvalidator{
		BaseURL: baseURL,
		Token:   os.Getenv("LEAGUE_SERVICE_TOKEN"),
		Client:  utils.HTTPClient,
	}
}

func invalidateViews(keys ...string) {
	if defaultInvalidator == nil || len(keys) == 0 {
		return
	}
	go defaultInvalidator.post(keys)
}

func (v *viewInvalidator) post(keys []string) {
	body, _ := json.Marshal(map[string]interface{}{"keys": keys})
	req, err := http.NewRequest("POST", v.BaseURL+"/invalidate", bytes.NewBuffer(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if v.Token != "" {
		req.Header.Set("Authorization", "Bearer "+v.Token)
	}
	resp, err := v.Client.Do(req)
	if err != nil {
		log.Printf("WARN view invalidation failed for %v: %v", keys, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("WARN view invalidation for %v returned %d", keys, resp.StatusCode)
	}
}
