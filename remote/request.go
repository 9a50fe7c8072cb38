package remote

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/hugr-lab/sqlcalc/internal/serialize"
)

const (
	querySep  = "&&"
	queryKey  = "query="
	kvpairKey = "kvpair="
)

// Auth holds the credentials used to sign requests.
type Auth struct {
	Token string
	Key   string
}

// RequestOptions configures NewRequest.
type RequestOptions struct {
	// Format is the result format requested from the remote engine.
	// Defaults to "json".
	Format string
	// TimeoutMs is forwarded to the remote engine when positive.
	TimeoutMs int
	// Auth enables signing when non-nil.
	Auth *Auth
	// Compress zstd-compresses the body.
	Compress bool
}

// Request is a transport-ready remote query.
type Request struct {
	Query      string
	KVPair     string
	Body       []byte
	Compressed bool
}

// NewRequest builds the transport string
//
//	query=<sql>&&kvpair=format:json;dynamic_params:[[...]][;authToken:t;authSignature:s]
//
// The signature is the hex MD5 of query + kvpair (without the auth
// entries) + key.
func NewRequest(stmt Statement, opts RequestOptions) (*Request, error) {
	dynamic, err := json.Marshal([]any{stmt.Params})
	if err != nil {
		return nil, fmt.Errorf("encode dynamic params: %w", err)
	}

	format := opts.Format
	if format == "" {
		format = "json"
	}
	pairs := []string{"format:" + format}
	if opts.TimeoutMs > 0 {
		pairs = append(pairs, "timeout:"+strconv.Itoa(opts.TimeoutMs))
	}
	pairs = append(pairs, "dynamic_params:"+string(dynamic))
	kvpair := strings.Join(pairs, ";")

	if opts.Auth != nil {
		kvpair += ";authToken:" + opts.Auth.Token +
			";authSignature:" + Sign(stmt.SQL, kvpair, opts.Auth.Key)
	}

	req := &Request{Query: stmt.SQL, KVPair: kvpair}
	body := []byte(queryKey + stmt.SQL + querySep + kvpairKey + kvpair)
	if !opts.Compress {
		req.Body = body
		return req, nil
	}

	c, err := serialize.NewCompressor(zstd.SpeedDefault)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	req.Body = c.Compress(body)
	req.Compressed = true
	return req, nil
}

// Sign returns the hex MD5 of query + kvpair + key.
func Sign(query, kvpair, key string) string {
	sum := md5.Sum([]byte(query + kvpair + key))
	return hex.EncodeToString(sum[:])
}

// ParseRequest splits a body produced by NewRequest back into query and
// kvpair.
func ParseRequest(body []byte, compressed bool) (*Request, error) {
	raw := body
	if compressed {
		d, err := serialize.NewDecompressor()
		if err != nil {
			return nil, err
		}
		defer d.Close()
		if raw, err = d.Decompress(body); err != nil {
			return nil, err
		}
	}

	if !bytes.HasPrefix(raw, []byte(queryKey)) {
		return nil, fmt.Errorf("request body does not start with %q", queryKey)
	}
	rest := string(raw[len(queryKey):])
	i := strings.LastIndex(rest, querySep+kvpairKey)
	if i < 0 {
		return nil, fmt.Errorf("request body has no kvpair")
	}
	return &Request{
		Query:      rest[:i],
		KVPair:     rest[i+len(querySep+kvpairKey):],
		Body:       body,
		Compressed: compressed,
	}, nil
}

// Pairs returns the kvpair entries as a map.
func (r *Request) Pairs() map[string]string {
	out := make(map[string]string)
	for _, p := range strings.Split(r.KVPair, ";") {
		k, v, ok := strings.Cut(p, ":")
		if ok {
			out[k] = v
		}
	}
	return out
}

// Verify checks the signature of r against key.
func (r *Request) Verify(key string) bool {
	i := strings.Index(r.KVPair, ";authToken:")
	if i < 0 {
		return false
	}
	sig, ok := r.Pairs()["authSignature"]
	return ok && sig == Sign(r.Query, r.KVPair[:i], key)
}
