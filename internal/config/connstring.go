package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseConnectionString reads a storage connection string of the form
// "Endpoint=minio:9000;AccessKey=..;SecretKey=..;Bucket=uploads;UseSSL=false".
// Azure style aliases are accepted: AccountName, AccountKey, Container,
// DefaultEndpointsProtocol=https (sets UseSSL) and BlobEndpoint.
func ParseConnectionString(s string) (Storage, error) {
	var st Storage
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return Storage{}, fmt.Errorf("malformed connection string segment %q", part)
		}
		v = strings.TrimSpace(v)
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "endpoint", "blobendpoint":
			st.Endpoint, st.UseSSL = splitScheme(v, st.UseSSL)
		case "accesskey", "accountname":
			st.AccessKey = v
		case "secretkey", "accountkey":
			st.SecretKey = v
		case "bucket", "bucketname", "container":
			st.BucketName = v
		case "region":
			st.Region = v
		case "usessl":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Storage{}, fmt.Errorf("UseSSL: %w", err)
			}
			st.UseSSL = b
		case "defaultendpointsprotocol":
			st.UseSSL = strings.EqualFold(v, "https")
		case "publicbaseurl":
			st.PublicBaseURL = v
		}
	}
	return st, nil
}

// splitScheme strips an http(s) scheme and trailing slash from an endpoint, minio wants host:port.
func splitScheme(v string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(v, "https://"):
		v, useSSL = strings.TrimPrefix(v, "https://"), true
	case strings.HasPrefix(v, "http://"):
		v, useSSL = strings.TrimPrefix(v, "http://"), false
	}
	return strings.TrimRight(v, "/"), useSSL
}

// merge copies non-empty fields of o onto s.
func (s *Storage) merge(o Storage) {
	if o.Endpoint != "" {
		s.Endpoint = o.Endpoint
		s.UseSSL = o.UseSSL
	} else if o.UseSSL {
		s.UseSSL = true
	}
	if o.AccessKey != "" {
		s.AccessKey = o.AccessKey
	}
	if o.SecretKey != "" {
		s.SecretKey = o.SecretKey
	}
	if o.BucketName != "" {
		s.BucketName = o.BucketName
	}
	if o.Region != "" {
		s.Region = o.Region
	}
	if o.PublicBaseURL != "" {
		s.PublicBaseURL = o.PublicBaseURL
	}
}
