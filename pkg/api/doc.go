// Package api provides the HTTP REST API server for hiregate.
//
// # Overview
//
// The server exposes organization membership and authorization over JSON
// endpoints built on gorilla/mux. Every protected route resolves the caller
// through the authorization gateway before the handler runs; handlers then
// delegate to the invite link, join request, pipeline and organization
// services and map their typed errors to HTTP responses.
//
// # Routes
//
//	POST   /api/invite-links                    invitation:create
//	GET    /api/invite-links                    invitation:create
//	DELETE /api/invite-links/{id}               invitation:cancel
//	GET    /api/invite-links/info/{token}       public
//	POST   /api/invite-links/accept             signed in
//	POST   /api/join-requests                   signed in
//	GET    /api/join-requests                   invitation:create
//	POST   /api/join-requests/{id}/approve      invitation:create
//	POST   /api/join-requests/{id}/reject       invitation:cancel
//	PATCH  /api/jobs/{id}/status                job:update
//	PATCH  /api/applications/{id}/status        application:update
//	GET    /api/status-transitions              public
//	GET    /api/org-search?q=                   signed in
//	POST   /api/organizations                   signed in
//	GET    /api/members                         any member
//	DELETE /api/members/{userId}                member:delete
//	GET    /api/activity-log                    activityLog:read
//	GET    /metrics, /healthz, /livez           public
//
// # Usage
//
//	server := api.NewServer(api.Deps{
//		Gateway:      gateway,
//		Store:        store,
//		InviteLinks:  invitelinks.NewService(store, recorder, logger),
//		JoinRequests: joinrequests.NewService(store, recorder, logger),
//		Pipeline:     pipeline.NewService(store, recorder, logger),
//		Recorder:     recorder,
//		Logger:       logger,
//	})
//	http.ListenAndServe(":8080", server)
package api
