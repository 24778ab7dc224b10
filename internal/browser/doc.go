// Package browser is an interactive terminal view over a dirtree.Cache. It
// holds its own expansion references on the shared cache and redraws from
// the cache's notifications.
package browser
