package services

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"agency_listings/config"
	"agency_listings/identity"
	"agency_listings/models"
)

// Feed names the classifier reads. Other feeds are fetched and reported but
// do not contribute to any bucket.
const (
	FeedCurrent    = config.FeedCurrent
	FeedSold       = config.FeedSold
	FeedPast       = config.FeedPast
	FeedPastLeased = config.FeedPastLeased
	FeedComingSoon = config.FeedComingSoon
	FeedPending    = config.FeedPending
)

var forSalePrefixes = []string{"active", "coming soon", "pending"}

// BucketNames lists the output buckets in document order.
var BucketNames = []string{"availableRentals", "leasedUnits", "forSaleHouses", "soldHouses"}

type Feeds struct {
	Current    []models.Listing
	Sold       []models.Listing
	Past       []models.Listing
	PastLeased []models.Listing
	ComingSoon []models.Listing
	Pending    []models.Listing
}

func FeedsFromMap(m map[string][]models.Listing) Feeds {
	return Feeds{
		Current:    m[FeedCurrent],
		Sold:       m[FeedSold],
		Past:       m[FeedPast],
		PastLeased: m[FeedPastLeased],
		ComingSoon: m[FeedComingSoon],
		Pending:    m[FeedPending],
	}
}

type Buckets struct {
	AvailableRentals []models.Listing `json:"availableRentals"`
	LeasedUnits      []models.Listing `json:"leasedUnits"`
	ForSaleHouses    []models.Listing `json:"forSaleHouses"`
	SoldHouses       []models.Listing `json:"soldHouses"`
}

func (b Buckets) Total() int {
	return len(b.AvailableRentals) + len(b.LeasedUnits) + len(b.ForSaleHouses) + len(b.SoldHouses)
}

func (b Buckets) ByName() map[string][]models.Listing {
	return map[string][]models.Listing{
		"availableRentals": b.AvailableRentals,
		"leasedUnits":      b.LeasedUnits,
		"forSaleHouses":    b.ForSaleHouses,
		"soldHouses":       b.SoldHouses,
	}
}

// Classify partitions the feeds into the four output buckets. A listing key
// lands in at most one bucket; buckets are filled in the order leased, sold,
// available rental, for sale, and a key already placed is skipped. Records
// with neither an ID nor address fields are never treated as duplicates.
// Listings matching no predicate are dropped.
func Classify(f Feeds) Buckets {
	b := Buckets{
		AvailableRentals: []models.Listing{},
		LeasedUnits:      []models.Listing{},
		ForSaleHouses:    []models.Listing{},
		SoldHouses:       []models.Listing{},
	}

	placed := make(map[string]bool)
	add := func(dst *[]models.Listing, l models.Listing) {
		if !identity.Identifiable(l) {
			*dst = append(*dst, l)
			return
		}
		key := identity.Key(l)
		if placed[key] {
			return
		}
		placed[key] = true
		*dst = append(*dst, l)
	}

	for _, feed := range [][]models.Listing{f.Current, f.Past, f.Sold, f.PastLeased} {
		for _, l := range feed {
			if IsLeased(l) {
				add(&b.LeasedUnits, l)
			}
		}
	}

	pastLeased := keySet(f.PastLeased)
	for _, l := range f.Sold {
		if IsSold(l, pastLeased) {
			add(&b.SoldHouses, l)
		}
	}

	for _, feed := range [][]models.Listing{f.Current, f.ComingSoon, f.Pending} {
		for _, l := range feed {
			if IsAvailableRental(l) {
				add(&b.AvailableRentals, l)
			}
		}
	}

	for _, feed := range [][]models.Listing{f.Current, f.ComingSoon, f.Pending} {
		for _, l := range feed {
			if IsForSale(l) {
				add(&b.ForSaleHouses, l)
			}
		}
	}

	return b
}

// IsAvailableRental matches rentals whose status starts with "active",
// which includes "Active Under Contract".
func IsAvailableRental(l models.Listing) bool {
	return l.IsRental() && strings.HasPrefix(strings.ToLower(l.Status()), "active")
}

func IsForSale(l models.Listing) bool {
	if l.IsRental() {
		return false
	}
	status := strings.ToLower(l.Status())
	for _, prefix := range forSalePrefixes {
		if strings.HasPrefix(status, prefix) {
			return true
		}
	}
	return false
}

// IsLeased matches leased or rented listings by status or banner. "Closed"
// only counts for rentals; a closed sale belongs to the sold bucket, and a
// closed non-rental from the past feed lands in no bucket at all.
func IsLeased(l models.Listing) bool {
	if indicatesLeased(l) {
		return true
	}
	return l.IsRental() && strings.Contains(strings.ToLower(l.Status()), "closed")
}

// IsSold reports whether a sold-feed listing is a sale. Rentals, anything
// marked leased or rented, and keys present in the past-leased feed are
// excluded.
func IsSold(l models.Listing, pastLeased map[string]bool) bool {
	if l.IsRental() || indicatesLeased(l) {
		return false
	}
	return !identity.Identifiable(l) || !pastLeased[identity.Key(l)]
}

func indicatesLeased(l models.Listing) bool {
	status := strings.ToLower(l.Status())
	if strings.Contains(status, "leased") || strings.Contains(status, "rented") {
		return true
	}
	return strings.Contains(strings.ToLower(BannerText(l)), "rented")
}

// BannerText returns the banner as plain text. Some agents send the banner
// as an HTML fragment.
func BannerText(l models.Listing) string {
	banner := l.Banner()
	if !strings.Contains(banner, "<") {
		return banner
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(banner))
	if err != nil {
		return banner
	}
	return strings.TrimSpace(doc.Text())
}

func keySet(listings []models.Listing) map[string]bool {
	set := make(map[string]bool, len(listings))
	for _, l := range listings {
		if !identity.Identifiable(l) {
			continue
		}
		set[identity.Key(l)] = true
	}
	return set
}
