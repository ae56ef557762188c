package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/target/ledgerly/internal/bootstrap"
	"github.com/target/ledgerly/internal/domain/model"
	"github.com/target/ledgerly/internal/service"
)

// runSubcommand dispatches args[0] to subs, defaulting to "list".
func runSubcommand(cmdCtx *commandContext, name string, subs map[string]commandFn, args []string) error {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}
	run, ok := subs[sub]
	if !ok {
		names := make([]string, 0, len(subs))
		for n := range subs {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown %s subcommand %q (want one of: %s)", name, sub, strings.Join(names, ", "))
	}
	return run(cmdCtx, args)
}

// withSignedIn runs fn only for an authenticated session.
func withSignedIn(cmdCtx *commandContext, fn func(ctx context.Context, app *bootstrap.App) error) error {
	return withApp(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		if !app.Session.Snapshot().IsAuthenticated {
			return errNotSignedIn
		}
		return fn(ctx, app)
	})
}

func requireID(id int) error {
	if id <= 0 {
		return errors.New("-id is required")
	}
	return nil
}

func runFriends(cmdCtx *commandContext, args []string) error {
	return runSubcommand(cmdCtx, "friends", map[string]commandFn{
		"list":   runFriendsList,
		"add":    runFriendsAdd,
		"delete": runFriendsDelete,
	}, args)
}

func runFriendsList(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "friends list")
	asJSON := fs.Bool("json", false, "Print friends as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withSignedIn(cmdCtx, func(_ context.Context, app *bootstrap.App) error {
		friends := app.Friends.List()
		if *asJSON {
			return writeJSON(cmdCtx.Stdout, friends)
		}
		if len(friends) == 0 {
			return writef(cmdCtx.Stdout, "no friends yet\n")
		}
		tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 0, 2, ' ', 0)
		if err := writef(tw, "ID\tNAME\tUSERNAME\tSTATUS\n"); err != nil {
			return err
		}
		for _, f := range friends {
			if err := writef(tw, "%d\t%s\t%s\t%s\n", f.ID, f.Name, f.Username, f.Status); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

func runFriendsAdd(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "friends add")
	name := fs.String("name", "", "Display name")
	username := fs.String("username", "", "Username")
	handle := fs.String("user", "", "Add this directory user by handle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fromDirectory := strings.TrimSpace(*handle) != ""
	if fromDirectory && (*name != "" || *username != "") {
		return errors.New("use either -user or -name with -username")
	}

	return withSignedIn(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		var (
			friend model.Friend
			err    error
		)
		if fromDirectory {
			friend, err = addFromDirectory(ctx, app, *handle)
		} else {
			friend, err = app.Friends.AddByName(*name, *username)
		}
		if err != nil {
			return err
		}
		if err := app.Friends.Save(ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "added %s (%s)\n", friend.Name, friend.Username)
	})
}

func addFromDirectory(ctx context.Context, app *bootstrap.App, handle string) (model.Friend, error) {
	query := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	results, err := app.Directory.Search(ctx, query)
	if err != nil {
		return model.Friend{}, err
	}
	for _, r := range results {
		if model.SameHandle(r.Username, handle) {
			return app.Directory.AddFriend(r.User)
		}
	}
	return model.Friend{}, fmt.Errorf("no directory user %s", model.FormatHandle(handle))
}

func runFriendsDelete(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "friends delete")
	id := fs.Int("id", 0, "Friend ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	return withSignedIn(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		if err := app.Friends.Delete(*id); err != nil {
			return err
		}
		if err := app.Friends.Save(ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "friend %d removed\n", *id)
	})
}

func runGroups(cmdCtx *commandContext, args []string) error {
	return runSubcommand(cmdCtx, "groups", map[string]commandFn{
		"list":    runGroupsList,
		"create":  runGroupsCreate,
		"rename":  runGroupsRename,
		"image":   runGroupsImage,
		"members": runGroupsMembers,
		"touch":   runGroupsTouch,
		"delete":  runGroupsDelete,
	}, args)
}

func runGroupsList(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "groups list")
	asJSON := fs.Bool("json", false, "Print groups as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withSignedIn(cmdCtx, func(_ context.Context, app *bootstrap.App) error {
		groups := app.Groups.List()
		if *asJSON {
			return writeJSON(cmdCtx.Stdout, groups)
		}
		if len(groups) == 0 {
			return writef(cmdCtx.Stdout, "no groups yet\n")
		}
		tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 0, 2, ' ', 0)
		if err := writef(tw, "ID\tNAME\tMEMBERS\tLAST ACTIVE\n"); err != nil {
			return err
		}
		for _, g := range groups {
			if err := writef(tw, "%d\t%s\t%d\t%s\n", g.ID, g.Name, g.Members, g.LastActive.Format("2006-01-02 15:04")); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

// friendsByID resolves a comma-separated list of friend IDs.
func friendsByID(friends *service.FriendsService, csv string) ([]model.Friend, error) {
	var out []model.Friend
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid friend id %q", part)
		}
		f, err := friends.Get(id)
		if err != nil {
			return nil, fmt.Errorf("friend %d: %w", id, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// mutateGroup runs fn against the groups service and saves the result.
func mutateGroup(cmdCtx *commandContext, fn func(app *bootstrap.App) (model.Group, error), verb string) error {
	return withSignedIn(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		g, err := fn(app)
		if err != nil {
			return err
		}
		if err := app.Groups.Save(ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "%s group %d (%s)\n", verb, g.ID, g.Name)
	})
}

func runGroupsCreate(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "groups create")
	name := fs.String("name", "", "Group name")
	members := fs.String("members", "", "Comma-separated friend IDs")
	image := fs.String("image", "", "Group image URI")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return mutateGroup(cmdCtx, func(app *bootstrap.App) (model.Group, error) {
		list, err := friendsByID(app.Friends, *members)
		if err != nil {
			return model.Group{}, err
		}
		return app.Groups.Create(service.CreateGroupInput{Name: *name, Members: list, Image: *image})
	}, "created")
}

func runGroupsRename(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "groups rename")
	id := fs.Int("id", 0, "Group ID")
	name := fs.String("name", "", "New group name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	return mutateGroup(cmdCtx, func(app *bootstrap.App) (model.Group, error) {
		return app.Groups.Rename(*id, *name)
	}, "renamed")
}

func runGroupsImage(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "groups image")
	id := fs.Int("id", 0, "Group ID")
	set := fs.String("set", "", "Image URI to use")
	remove := fs.Bool("remove", false, "Clear the group image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}
	uri := strings.TrimSpace(*set)
	if (uri == "") == !*remove {
		return errors.New("exactly one of -set or -remove is required")
	}

	return mutateGroup(cmdCtx, func(app *bootstrap.App) (model.Group, error) {
		if *remove {
			return app.Groups.RemoveImage(*id)
		}
		return app.Groups.SetImage(*id, uri)
	}, "updated")
}

func runGroupsMembers(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "groups members")
	id := fs.Int("id", 0, "Group ID")
	members := fs.String("members", "", "Comma-separated friend IDs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	return mutateGroup(cmdCtx, func(app *bootstrap.App) (model.Group, error) {
		list, err := friendsByID(app.Friends, *members)
		if err != nil {
			return model.Group{}, err
		}
		return app.Groups.UpdateMembers(*id, list)
	}, "updated")
}

func runGroupsTouch(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "groups touch")
	id := fs.Int("id", 0, "Group ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	return mutateGroup(cmdCtx, func(app *bootstrap.App) (model.Group, error) {
		return app.Groups.Touch(*id)
	}, "touched")
}

func runGroupsDelete(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "groups delete")
	id := fs.Int("id", 0, "Group ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	return withSignedIn(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		if err := app.Groups.Delete(*id); err != nil {
			return err
		}
		if err := app.Groups.Save(ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "group %d deleted\n", *id)
	})
}
