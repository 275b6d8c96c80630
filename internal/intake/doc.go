// Package intake classifies inbound chat attachments before any stateful
// handling happens.
//
// Classification is a pure function of the declared MIME type, the file name,
// and the transport's attachment kind: it never downloads or inspects bytes.
// The result tells the session machine which slot (audio or image) the upload
// fills, or why it was rejected.
package intake
