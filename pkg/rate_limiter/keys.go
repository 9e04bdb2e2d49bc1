package rate_limiter

import (
	"fmt"

	"github.com/google/uuid"

	"github/martinmaurice/limitd/pkg/enum"
)

const eventKeyPrefix = "rate_limit_event:"

func stateKey(scope enum.Scope, identifier, endpoint string) string {
	key := fmt.Sprintf("rate_limit:%s:%s", scope, identifier)
	if endpoint != "" {
		key += ":" + endpoint
	}
	return key
}

func configKey(scope enum.Scope, endpoint string) string {
	key := fmt.Sprintf("rate_limit_config:%s", scope)
	if endpoint != "" {
		key += ":" + endpoint
	}
	return key
}

func whitelistKey(scope enum.Scope, identifier string) string {
	return fmt.Sprintf("rate_limit_whitelist:%s:%s", scope, identifier)
}

func blacklistKey(scope enum.Scope, identifier string) string {
	return fmt.Sprintf("rate_limit_blacklist:%s:%s", scope, identifier)
}

// eventKey gets a uuid suffix so checks landing on the same second do not
// overwrite each other's audit record.
func eventKey(unixSeconds int64) string {
	return fmt.Sprintf("%s%d:%s", eventKeyPrefix, unixSeconds, uuid.NewString())
}
