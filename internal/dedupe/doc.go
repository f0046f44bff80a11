// Package dedupe implements the flood guard: a bounded, windowed memory of
// recently dispatched (session, sender, text) keys so a user repeating the same
// command in quick succession triggers it only once.
package dedupe
