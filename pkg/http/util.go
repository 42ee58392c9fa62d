package http

import xutil "VendorLink/pkg/util"

// BearerToken extracts the credential from the request's Authorization header value.
func BearerToken(header string) string { return xutil.BearerToken(header) }
