package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// expire after the store's TTL; the cache janitor drops expired entries.
type ticketStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func newTicketStore(ttl time.Duration) *ticketStore {
	return &ticketStore{cache: cache.New(ttl, ttl)}
}

// issue creates and stores a new ticket.
func (s *ticketStore) issue() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	ticket := hex.EncodeToString(b)
	s.cache.SetDefault(ticket, struct{}{})
	return ticket
}

// consume reports whether ticket is valid and removes it.
func (s *ticketStore) consume(ticket string) bool {
	if ticket == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(ticket); !ok {
		return false
	}
	s.cache.Delete(ticket)
	return true
}

// handleWSTicket issues a single-use WebSocket ticket. Browsers cannot
// set headers on a WebSocket upgrade, so the client passes the ticket as
// ?ticket= instead of putting its bearer token in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// wsAuthMiddleware admits a WebSocket upgrade carrying a valid ticket and
// falls back to bearer authentication otherwise.
func (s *Server) wsAuthMiddleware(next http.Handler) http.Handler {
	if s.secCfg.JWT.Secret == "" {
		return next
	}
	bearer := s.authMiddleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ticket := r.URL.Query().Get("ticket"); ticket != "" {
			if !s.tickets.consume(ticket) {
				writeUnauthorized(w, "invalid or expired ticket")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		bearer.ServeHTTP(w, r)
	})
}
