package services

import (
	"agency_listings/models"
)

// EnsureImage fills a missing ImageURL from the fallback photo fields. A
// listing that already has an image is returned as is; otherwise a shallow
// copy is returned and the input is left untouched.
func EnsureImage(listing models.Listing) models.Listing {
	if listing.String(models.FieldImageURL) != "" {
		return listing
	}

	out := listing.Clone()
	if out == nil {
		out = models.Listing{}
	}
	out[models.FieldImageURL] = fallbackImage(listing)
	return out
}

// fallbackImage returns nil rather than "" so the output carries a JSON null.
func fallbackImage(listing models.Listing) any {
	for _, candidate := range []string{
		listing.String(models.FieldLargePhotoURL),
		listing.String(models.FieldPhotoURL),
		listing.FirstPhotoURI(),
	} {
		if candidate != "" {
			return candidate
		}
	}
	return nil
}

// NormalizeImages applies EnsureImage to every listing of a feed. The result
// is never nil.
func NormalizeImages(listings []models.Listing) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		out = append(out, EnsureImage(l))
	}
	return out
}
