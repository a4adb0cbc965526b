// Package remote implements the client for the tenant-scoped document API
// that backs synchronization. Documents are opaque maps with two well-known
// fields, the local record identity and the modification timestamp, and the
// client maps transport and status failures onto the shared fault taxonomy.
package remote
