// Package notify delivers one-shot, user-visible notifications about
// generation jobs: completion, worker failure, and dismissible errors from
// submissions and mutations.
//
// All engine code depends only on the Notifier interface. Inbox keeps an
// in-memory, dismissible list for interactive surfaces; NtfyNotifier pushes to
// an ntfy topic; Multi fans out to several notifiers.
package notify
