package clientdata

import "time"

// TTL constants for the external sources.
const (
	// Sales and building records change with DOF's monthly rolling-sales refresh
	TTLPropertyData = 6 * time.Hour
	// DOB permit filings land throughout the day
	TTLPermits = time.Hour
	// FRED series are weekly or daily
	TTLEconomic = 24 * time.Hour
	// Quotes during market hours
	TTLMarketIndex = 15 * time.Minute
	TTLListings    = 30 * time.Minute
)
