package firestoredb

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dasiyes/ivmchat/internal/chat"
	"google.golang.org/api/iterator"
)

// listRepo keeps the relay's IP access lists in two firestore collections,
// one document per IP address.
type listRepo struct {
	ctx        *context.Context
	white_coll string
	black_coll string
	client     *firestore.Client
}

func NewListRepository(ctx *context.Context, client *firestore.Client, wlcn, blcn string) (chat.ListRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required for the lists repository")
	}
	return &listRepo{
		ctx:        ctx,
		white_coll: wlcn,
		black_coll: blcn,
		client:     client,
	}, nil
}

func (l *listRepo) StoreWhiteList(wl *chat.WhiteList) error {

	if _, err := l.client.Collection(l.white_coll).Doc(wl.IP).Set(*l.ctx, wl); err != nil {
		return fmt.Errorf("unable to save into the whitelist repository. error: %v", err)
	}
	return nil
}

func (l *listRepo) GetWhiteList(ip string) (*chat.WhiteList, error) {

	var wlr chat.WhiteList
	doc, err := l.client.Collection(l.white_coll).Doc(ip).Get(*l.ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get whitelist entry from the repository. error: %v", err)
	}

	if err := doc.DataTo(&wlr); err != nil {
		return nil, fmt.Errorf("unable to fit the whitelist format. error: %v", err)
	}

	return &wlr, nil
}

// GetWLIPS returns all white-listed IP addresses.
func (l *listRepo) GetWLIPS() ([]string, error) {
	return l.listIPs(l.white_coll)
}

// ================================= BLACK LIST =================================

func (l *listRepo) StoreBlackList(bl *chat.BlackList) error {

	if _, err := l.client.Collection(l.black_coll).Doc(bl.IP).Set(*l.ctx, bl); err != nil {
		return fmt.Errorf("unable to save into the blacklist repository. error: %v", err)
	}
	return nil
}

func (l *listRepo) GetBlackList(ip string) (*chat.BlackList, error) {

	var blr chat.BlackList
	doc, err := l.client.Collection(l.black_coll).Doc(ip).Get(*l.ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get blacklist entry from the repository. error: %v", err)
	}

	if err := doc.DataTo(&blr); err != nil {
		return nil, fmt.Errorf("unable to fit the blacklist format. error: %v", err)
	}

	return &blr, nil
}

// GetBLIPS returns all black-listed IP addresses.
func (l *listRepo) GetBLIPS() ([]string, error) {
	return l.listIPs(l.black_coll)
}

func (l *listRepo) listIPs(coll string) ([]string, error) {

	var ips []string
	iter := l.client.Collection(coll).Documents(*l.ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to iterate the %s collection. error: %v", coll, err)
		}
		ips = append(ips, doc.Ref.ID)
	}
	return ips, nil
}
