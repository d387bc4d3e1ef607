package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type LocationSeed struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// OrderSeed is one demo checkout in the seed file.
type OrderSeed struct {
	BuyerID             string       `json:"buyer_id"`
	SellerID            string       `json:"seller_id"`
	Pickup              LocationSeed `json:"pickup"`
	Dropoff             LocationSeed `json:"dropoff"`
	ItemCount           int          `json:"item_count"`
	ItemPriceCents      int64        `json:"item_price_cents"`
	DeliveryMethod      string       `json:"delivery_method"`
	SellerShippingCents int64        `json:"seller_shipping_cents"`
	FeeBuyerCents       int64        `json:"fee_buyer_cents"`
	FeeSellerCents      int64        `json:"fee_seller_cents"`
	FeePlatformCents    int64        `json:"fee_platform_cents"`
	TipCents            int64        `json:"tip_cents"`
	Large               bool         `json:"large"`
	TimeSlot            string       `json:"time_slot"`
}

// Read demo orders from a JSON file. Field validation is left to order intake.
func LoadOrderSeeds(jsonPath string) ([]OrderSeed, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("seed orders: read %q: %w", jsonPath, err)
	}

	var data []OrderSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("seed orders: parse json: %w", err)
	}

	for i := range data {
		data[i].BuyerID = strings.TrimSpace(data[i].BuyerID)
		data[i].SellerID = strings.TrimSpace(data[i].SellerID)
		data[i].TimeSlot = strings.TrimSpace(data[i].TimeSlot)
		if data[i].BuyerID == "" || data[i].SellerID == "" {
			return nil, fmt.Errorf("seed orders: item at index %d: buyer_id and seller_id are required", i+1)
		}
	}

	return data, nil
}
