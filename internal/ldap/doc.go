/*
Package ldap implements the directory adapter for the portcullis access portal.

The package talks to an Active Directory style directory service that may be
reachable through several redundant domain controllers. It is organized into a
small set of components:

  - Selector: picks a controller address for each attempt (uniform random,
    with a configured fallback when no controllers are listed)
  - Executor: bounded retry with capped-linear backoff across attempts,
    skipping error classes that indicate caller bugs rather than outages
  - Client: per-attempt directory operations (credential validation,
    principal lookup and search, membership mutation) over scope-guarded
    sessions that are released on every exit path
  - Service: the retry-wrapped composition the rest of the application uses

Principal mapping is pure and total: raw directory entries are converted to
UserPrincipal and ResourceGroup records with absent attributes collapsing to
empty strings, never nil. Resource groups are recognized by the "Resource:"
prefix convention in their description attribute.

# Error Handling

Errors carry a category and a retryability flag derived from the LDAP result
code (or from the error text for plain network failures). Only
connection-class failures are retried; invalid credentials, missing
principals, and malformed arguments propagate on first occurrence. When all
attempts are exhausted the caller receives an *UnavailableError wrapping the
last cause and reporting the attempt count.

# Thread Safety

The Client, Executor, and Service hold no mutable state beyond configuration
and are safe for unbounded concurrent use. Every call re-queries the
directory; there is no cross-request cache. Concurrent mutations of the same
group are last-write-wins; the directory owns its own consistency.
*/
package ldap
