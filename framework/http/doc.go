// Package http provides the request and response helpers behind the
// container inspection API.
//
// # Request
//
//	req := gohttp.NewRequest(r)
//
//	var body struct{ Keys []string `json:"keys"` }
//	if err := req.BindJSON(&body); err != nil { ... }
//
//	key   := req.RouteParam("key")    // chi route parameter
//	fresh := req.QueryBool("fresh", false)
//	err   := rules.Check(req.Queries())
//	token := req.BearerToken()
//
// # Response
//
//	res := gohttp.NewResponse(w, logger)
//	res.Success(keys)                 // 200 {"data": keys}
//	res.NotFound()                    // 404 {"message": "Not found."}
//	res.ValidationError(err)          // 422 {"errors": {...}}
package http
