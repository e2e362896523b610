package domain

import "time"

// OfferBook is the public listing of active offers in one market.
// Sell offers are ordered by price ascending, buy offers by price descending.
type OfferBook struct {
	Market    string
	Buy       []Offer
	Sell      []Offer
	Timestamp time.Time
}

func (b *OfferBook) DeepCopy() *OfferBook {
	if b == nil {
		return nil
	}
	cp := &OfferBook{Market: b.Market, Timestamp: b.Timestamp}
	cp.Buy = append([]Offer(nil), b.Buy...)
	cp.Sell = append([]Offer(nil), b.Sell...)
	return cp
}
